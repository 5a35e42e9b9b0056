package speech

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrUnknownVoice is returned by ParseVoice for names outside the voice set.
var ErrUnknownVoice = errors.New("unknown voice")

// Voice is one of the provider's fixed speech voices.
type Voice string

const (
	VoiceAlloy   Voice = Voice(openai.VoiceAlloy)
	VoiceEcho    Voice = Voice(openai.VoiceEcho)
	VoiceFable   Voice = Voice(openai.VoiceFable)
	VoiceOnyx    Voice = Voice(openai.VoiceOnyx)
	VoiceNova    Voice = Voice(openai.VoiceNova)
	VoiceShimmer Voice = Voice(openai.VoiceShimmer)
)

// DefaultVoice is used when no voice is configured.
const DefaultVoice = VoiceAlloy

// Voices lists every accepted voice.
var Voices = []Voice{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}

// ParseVoice accepts a voice name case-insensitively. Empty selects DefaultVoice.
func ParseVoice(s string) (Voice, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DefaultVoice, nil
	}
	for _, v := range Voices {
		if string(v) == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVoice, s)
}
