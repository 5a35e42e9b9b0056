package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ent0n29/kanavoz/internal/audio"
	"github.com/ent0n29/kanavoz/internal/speech"
)

// voiceFlag overrides speech.voice for one command. Empty keeps the config.
type voiceFlag speech.Voice

func (v *voiceFlag) Set(val string) error {
	parsed, err := speech.ParseVoice(val)
	if err != nil {
		return fmt.Errorf("%w (one of %v)", err, speech.Voices)
	}
	*v = voiceFlag(parsed)
	return nil
}

func (v voiceFlag) String() string { return string(v) }

func (v *voiceFlag) Type() string { return "voice" }

// formatFlag overrides speech.format for one command.
type formatFlag audio.Format

func (f *formatFlag) Set(val string) error {
	parsed, err := audio.ParseFormat(val)
	if err != nil {
		return err
	}
	*f = formatFlag(parsed)
	return nil
}

func (f formatFlag) String() string { return string(f) }

func (f *formatFlag) Type() string { return "format" }

var (
	_ pflag.Value = (*voiceFlag)(nil)
	_ pflag.Value = (*formatFlag)(nil)
)
