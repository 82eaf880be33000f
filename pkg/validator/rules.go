package validator

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Required fails on empty or whitespace-only values.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{
			Field:          field,
			Message:        "is required",
			TranslationKey: "validation.required",
		},
	}
}

// MaxLen fails when value has more than max runes.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be at most %d characters", max),
			TranslationKey: "validation.max_length",
		},
	}
}

// ValidEmail validates a bare address (no display name) with a dotted domain.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != strings.TrimSpace(value) {
				return false
			}
			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" || !strings.Contains(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid email address",
			TranslationKey: "validation.email",
		},
	}
}

// Matches fails when value differs from expected. Used for confirmation fields.
func Matches(field, value, expected string) Rule {
	return Rule{
		Check: func() bool { return value == expected },
		Error: ValidationError{
			Field:          field,
			Message:        "does not match",
			TranslationKey: "validation.mismatch",
		},
	}
}

// NotEqual fails when value equals other.
func NotEqual(field, value, other string) Rule {
	return Rule{
		Check: func() bool { return value != other },
		Error: ValidationError{
			Field:          field,
			Message:        "must differ from the current value",
			TranslationKey: "validation.not_equal",
		},
	}
}
