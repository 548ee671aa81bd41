package cv

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	piiEmailRe = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	piiPhoneRe = regexp.MustCompile(`(?:\+|00)?\d[\d .()-]{8,}\d`)
	piiURLRe   = regexp.MustCompile(`(?i)\bhttps?://[^\s"']+`)
)

// maskToken replaces a PII token with a kind tag plus a short stable hash,
// so masked logs stay diffable without exposing the value.
func maskToken(kind, token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("[%s:%x]", kind, h[:4])
}

// MaskPII replaces emails, phone numbers and URLs in text with
// structure-preserving hash tags.
func MaskPII(text string) string {
	text = piiEmailRe.ReplaceAllStringFunc(text, func(m string) string {
		return maskToken("EMAIL", m)
	})
	text = piiURLRe.ReplaceAllStringFunc(text, func(m string) string {
		return maskToken("URL", m)
	})
	text = piiPhoneRe.ReplaceAllStringFunc(text, func(m string) string {
		return maskToken("PHONE", m)
	})
	return text
}

// ValidateNoPIILeakage scans text that is about to leave the pipeline and
// returns the kinds of unmasked PII found. Empty result means clean.
func ValidateNoPIILeakage(text string) []string {
	var kinds []string
	if piiEmailRe.MatchString(text) {
		kinds = append(kinds, "email")
	}
	if piiPhoneRe.MatchString(text) {
		kinds = append(kinds, "phone")
	}
	if piiURLRe.MatchString(text) {
		kinds = append(kinds, "url")
	}
	return kinds
}
