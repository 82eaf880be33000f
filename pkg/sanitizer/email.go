package sanitizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// NormalizeEmail trims surrounding whitespace and lowercases the address so
// that lookups and uniqueness checks are case-insensitive. Dots and plus tags
// are kept: they are significant to many mail providers.
func NormalizeEmail(email string) string {
	return lower.String(strings.TrimSpace(email))
}

// EmailDomain returns the lowercased domain part, or "" when email has no
// single "@".
func EmailDomain(email string) string {
	_, domain, ok := splitEmail(email)
	if !ok {
		return ""
	}
	return lower.String(domain)
}

// MaskEmail hides the local part except its first character. Used for log
// output.
func MaskEmail(email string) string {
	local, domain, ok := splitEmail(email)
	if !ok || local == "" {
		return email
	}
	r := []rune(local)
	return string(r[0]) + strings.Repeat("*", len(r)-1) + "@" + domain
}

func splitEmail(email string) (local, domain string, ok bool) {
	email = strings.TrimSpace(email)
	if strings.Count(email, "@") != 1 {
		return "", "", false
	}
	local, domain, _ = strings.Cut(email, "@")
	return local, domain, true
}
