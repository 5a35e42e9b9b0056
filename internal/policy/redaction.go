package policy

import "regexp"

var (
	apiKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`)
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._\-]{8,}`)
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: credentials first, then cards before phones so long digit
// runs are not classified as phone numbers.
var rules = []rule{
	{apiKeyPattern, "[REDACTED_KEY]"},
	{bearerPattern, "[REDACTED_TOKEN]"},
	{emailPattern, "[REDACTED_EMAIL]"},
	{cardPattern, "[REDACTED_CARD]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// Redact masks credentials and common PII before text is written to logs.
func Redact(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// RedactString is Redact without the changed flag, for log fields.
func RedactString(input string) string {
	out, _ := Redact(input)
	return out
}
