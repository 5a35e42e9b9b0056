package speech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencePattern    = regexp.MustCompile("(?s)```.*?```")
	backtickPattern = regexp.MustCompile("`([^`]*)`")
	urlPattern      = regexp.MustCompile(`https?://\S+`)
)

// Speakable prepares translated text for the speech API: markup, URLs and
// symbol glyphs are dropped and whitespace is collapsed. Japanese and
// Latin sentence punctuation is kept since it drives prosody.
func Speakable(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencePattern.ReplaceAllString(raw, " ")
	raw = backtickPattern.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")

	var b strings.Builder
	b.Grow(len(raw))
	space := true
	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f':
			continue
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			continue
		case spokenPunct(r):
			b.WriteRune(r)
			space = false
		case unicode.IsPunct(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}

func spokenPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')',
		'。', '、', '！', '？', '「', '」', '『', '』', '・', 'ー', '〜', '…':
		return true
	default:
		return false
	}
}
