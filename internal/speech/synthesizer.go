// Package speech turns text into audio bytes through the provider's speech API.
package speech

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/ent0n29/kanavoz/internal/audio"
	"github.com/ent0n29/kanavoz/internal/policy"
	"github.com/ent0n29/kanavoz/internal/reliability"
)

// Model is the fixed speech model identifier.
const Model = openai.TTSModel1

var errEmptyAudio = errors.New("provider returned an empty audio body")

// Audio is a fully collected synthesis result.
type Audio struct {
	Data   []byte
	Format audio.Format
}

func (a Audio) Ext() string         { return a.Format.Ext() }
func (a Audio) ContentType() string { return a.Format.ContentType() }

type Synthesizer struct {
	client Client
	format audio.Format
	log    zerolog.Logger
}

// NewSynthesizer returns a synthesizer requesting format from the provider.
// An empty format selects mp3.
func NewSynthesizer(client Client, format audio.Format, log zerolog.Logger) *Synthesizer {
	if format == "" {
		format = audio.FormatMP3
	}
	return &Synthesizer{client: client, format: format, log: log}
}

func (s *Synthesizer) Format() audio.Format { return s.format }

// Synthesize calls the speech API once and reads the whole body before
// returning. Raw pcm output is wrapped in WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	text = Speakable(text)
	if text == "" {
		return Audio{}, &SynthesisError{Message: ErrEmptyText.Error(), Err: ErrEmptyText}
	}
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          Model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(s.format),
	})
	if err != nil {
		return Audio{}, s.fail(err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Audio{}, s.fail(err)
	}
	if len(data) == 0 {
		return Audio{}, s.fail(errEmptyAudio)
	}

	if s.format == audio.FormatPCM {
		data, err = audio.WrapPCM16(data, audio.PCMSampleRate)
		if err != nil {
			return Audio{}, s.fail(err)
		}
	}

	s.log.Debug().
		Str("voice", string(voice)).
		Str("format", string(s.format)).
		Int("bytes", len(data)).
		Msg("speech synthesized")
	return Audio{Data: data, Format: s.format}, nil
}

func (s *Synthesizer) fail(err error) error {
	failure := reliability.Classify(err)
	msg := policy.RedactString(err.Error())
	s.log.Warn().
		Str("code", failure.Code).
		Int("upstream_status", failure.UpstreamStatus).
		Str("error", msg).
		Msg("speech synthesis failed")
	return &SynthesisError{Message: msg, Failure: failure, Err: err}
}
