package translation

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	fencePrefix = "```json"
	fenceSuffix = "```"
)

var errNotObject = errors.New("expected a JSON object")

// Result is the translation of one request. It is never persisted.
type Result struct {
	Hiragana      string `json:"hiragana"`
	Romanji       string `json:"romanji"`
	Translation   string `json:"translation"`
	Pronunciation string `json:"pronunciation"`
}

// modelReply accepts both the Spanish keys the prompt asks for and their
// English equivalents.
type modelReply struct {
	Hiragana      string `json:"hiragana"`
	Romanji       string `json:"romanji"`
	Romaji        string `json:"romaji"`
	Translation   string `json:"translation"`
	Traduccion    string `json:"traduccion"`
	Pronunciation string `json:"pronunciation"`
	Pronunciacion string `json:"pronunciacion"`
}

func (m modelReply) result() Result {
	return Result{
		Hiragana:      m.Hiragana,
		Romanji:       firstNonEmpty(m.Romanji, m.Romaji),
		Translation:   firstNonEmpty(m.Translation, m.Traduccion),
		Pronunciation: firstNonEmpty(m.Pronunciation, m.Pronunciacion),
	}
}

// StripFence removes a ```json ... ``` wrapper when both markers are present.
// Anything else is returned unchanged apart from surrounding whitespace.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= len(fencePrefix)+len(fenceSuffix) &&
		strings.HasPrefix(s, fencePrefix) && strings.HasSuffix(s, fenceSuffix) {
		return strings.TrimSpace(s[len(fencePrefix) : len(s)-len(fenceSuffix)])
	}
	return s
}

// Normalize parses a raw model reply into a Result. Missing fields are left
// empty; unknown fields are ignored.
func Normalize(raw string) (Result, error) {
	body := StripFence(raw)
	if !strings.HasPrefix(body, "{") {
		return Result{}, &MalformedResponseError{Raw: raw, Err: errNotObject}
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return Result{}, &MalformedResponseError{Raw: raw, Err: err}
	}
	return reply.result(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
