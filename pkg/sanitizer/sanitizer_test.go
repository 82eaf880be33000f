package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/accountkit/pkg/sanitizer"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Alice@Example.COM", "alice@example.com"},
		{"trims", "  bob@example.com\t", "bob@example.com"},
		{"keeps dots and tags", "a.b+news@example.com", "a.b+news@example.com"},
		{"unicode", "ÉLODIE@example.com", "élodie@example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizer.NormalizeEmail(tt.in))
		})
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a****@example.com", sanitizer.MaskEmail("alice@example.com"))
	assert.Equal(t, "b@example.com", sanitizer.MaskEmail("b@example.com"))
	assert.Equal(t, "not-an-email", sanitizer.MaskEmail("not-an-email"))
	assert.Equal(t, "example.com", sanitizer.EmailDomain("Bob@Example.com"))
	assert.Equal(t, "", sanitizer.EmailDomain("a@b@c"))
}

func TestName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ada Lovelace", sanitizer.Name("  Ada \n\t Lovelace ", 0))
	assert.Equal(t, "Ada", sanitizer.Name("Ada\x00", 0))
	assert.Equal(t, "Ada", sanitizer.Name("Ada Lovelace", 4))
}
