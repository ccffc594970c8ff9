package console

import "regexp"

// PII-shaped patterns scrubbed from operator-visible text. Screen captures
// and operation logs would otherwise re-leak the original substrings.
var (
	emailPattern    = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	mobilePattern   = regexp.MustCompile(`\b01[0-9]-?[0-9]{3,4}-?[0-9]{4}\b`)
	landlinePattern = regexp.MustCompile(`\b[0-9]{2,3}-[0-9]{2,4}-[0-9]{4}\b`)
	digitRunPattern = regexp.MustCompile(`\b[0-9]{6,}\b`)
)

// MaskSensitive replaces PII-shaped substrings (emails, phone numbers,
// long digit runs) with fixed placeholders before the text is displayed
// or logged.
func MaskSensitive(s string) string {
	if s == "" {
		return s
	}
	s = emailPattern.ReplaceAllString(s, "[EMAIL_MASKED]")
	s = mobilePattern.ReplaceAllString(s, "[PHONE_MASKED]")
	s = landlinePattern.ReplaceAllString(s, "[PHONE_MASKED]")
	s = digitRunPattern.ReplaceAllString(s, "[NUMBER_MASKED]")
	return s
}
