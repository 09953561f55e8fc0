package model

import (
	"regexp"
	"strings"
)

// TariffCode is one row of the AHTN reference nomenclature: an 8-digit
// classification under a 4-digit heading. Reference data is read-only;
// it is loaded by the importer and queried by heading prefix.
type TariffCode struct {
	Code        string `json:"hs_code"`
	Description string `json:"description"`
	FullPath    string `json:"full_path"`
	DutyRate    string `json:"duty_rate"`
}

// codePattern matches the dotted 4-2-2 presentation of a full code.
var codePattern = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// IsFullCode reports whether s is a complete dotted 8-digit code (DDDD.DD.DD).
func IsFullCode(s string) bool {
	return codePattern.MatchString(s)
}

var nonDigit = regexp.MustCompile(`\D`)

// NormalizeHeading strips every non-digit character from s and reports
// whether the remainder is a valid 4-digit heading. Anything else is an
// identification failure, not an error.
func NormalizeHeading(s string) (string, bool) {
	cleaned := nonDigit.ReplaceAllString(s, "")
	if len(cleaned) != 4 {
		return "", false
	}
	return cleaned, true
}

// Heading returns the 4-digit heading prefix of a tariff code.
func (t TariffCode) Heading() string {
	digits := nonDigit.ReplaceAllString(t.Code, "")
	if len(digits) < 4 {
		return digits
	}
	return digits[:4]
}

// Dotted returns the code in DDDD.DD.DD presentation form. Codes already
// dotted are returned unchanged; bare 8-digit values are regrouped.
func (t TariffCode) Dotted() string {
	if IsFullCode(t.Code) {
		return t.Code
	}
	digits := nonDigit.ReplaceAllString(t.Code, "")
	if len(digits) != 8 {
		return t.Code
	}
	return digits[:4] + "." + digits[4:6] + "." + digits[6:8]
}

// headingRef matches a 4-digit heading mention, optionally extended to a
// full dotted code, inside free text.
var headingRef = regexp.MustCompile(`\b(\d{4})(?:\.\d{2})?(?:\.\d{2})?\b`)

// ExtractHeadingRef finds the first 4-digit heading referenced in text.
// Returns ("", false) when no heading-shaped number is present.
func ExtractHeadingRef(text string) (string, bool) {
	m := headingRef.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatCodesForPrompt renders candidate codes as a bullet list for the
// reasoning-service prompt.
func FormatCodesForPrompt(codes []TariffCode) string {
	if len(codes) == 0 {
		return "No relevant codes found."
	}
	var b strings.Builder
	for i, c := range codes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(c.Dotted())
		b.WriteString(": ")
		b.WriteString(c.FullPath)
		b.WriteString(" (Duty: ")
		b.WriteString(c.DutyRate)
		b.WriteString("%)")
	}
	return b.String()
}
