package validator

import (
	"fmt"
	"strings"
	"unicode"
)

// PasswordPolicy lists the character requirements for a new password.
type PasswordPolicy struct {
	MinLength        int
	MaxBytes         int // bcrypt ignores input past 72 bytes
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy requires at least 8 characters with an uppercase
// letter, a lowercase letter, a digit and a special character.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		MaxBytes:         72,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}
}

func (p PasswordPolicy) describe() string {
	var req []string
	if p.RequireUppercase {
		req = append(req, "an uppercase letter")
	}
	if p.RequireLowercase {
		req = append(req, "a lowercase letter")
	}
	if p.RequireDigit {
		req = append(req, "a digit")
	}
	if p.RequireSpecial {
		req = append(req, "a special character")
	}
	msg := fmt.Sprintf("must be at least %d characters", p.MinLength)
	if len(req) > 0 {
		msg += " and contain " + strings.Join(req, ", ")
	}
	return msg
}

func (p PasswordPolicy) satisfied(value string) bool {
	if len([]rune(value)) < p.MinLength {
		return false
	}
	if p.MaxBytes > 0 && len(value) > p.MaxBytes {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return (!p.RequireUppercase || upper) &&
		(!p.RequireLowercase || lower) &&
		(!p.RequireDigit || digit) &&
		(!p.RequireSpecial || special)
}

// StrongPassword checks value against policy.
func StrongPassword(field, value string, policy PasswordPolicy) Rule {
	return Rule{
		Check: func() bool { return policy.satisfied(value) },
		Error: ValidationError{
			Field:          field,
			Message:        policy.describe(),
			TranslationKey: "validation.password_strength",
		},
	}
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "password!": {},
	"p@ssw0rd": {}, "p@ssword1": {}, "passw0rd!": {}, "qwerty123!": {},
	"qwerty": {}, "qwerty123": {}, "123456": {}, "12345678": {},
	"123456789": {}, "1234567890": {}, "letmein": {}, "letmein1!": {},
	"welcome": {}, "welcome1": {}, "welcome1!": {}, "welcome123!": {},
	"admin": {}, "admin123": {}, "admin123!": {}, "administrator": {},
	"iloveyou": {}, "iloveyou1!": {}, "monkey": {}, "dragon": {},
	"sunshine": {}, "princess": {}, "football": {}, "baseball": {},
	"trustno1": {}, "abc123": {}, "abcd1234!": {}, "changeme": {},
	"changeme1!": {}, "secret": {}, "secret123!": {}, "summer2024!": {},
	"winter2024!": {}, "spring2024!": {}, "autumn2024!": {},
}

// NotCommonPassword rejects passwords from a short list of well-known ones,
// compared case-insensitively.
func NotCommonPassword(field, value string) Rule {
	return Rule{
		Check: func() bool {
			_, found := commonPasswords[strings.ToLower(value)]
			return !found
		},
		Error: ValidationError{
			Field:          field,
			Message:        "is too common, please choose a different one",
			TranslationKey: "validation.password_common",
		},
	}
}
