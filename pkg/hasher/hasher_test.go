package hasher_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/accountkit/pkg/hasher"
)

func TestBcrypt(t *testing.T) {
	t.Parallel()

	h := hasher.NewBcrypt(bcrypt.MinCost)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		digest, err := h.Hash("Str0ng!pass")
		require.NoError(t, err)
		assert.NotEqual(t, "Str0ng!pass", digest)
		assert.True(t, h.Verify("Str0ng!pass", digest))
		assert.False(t, h.Verify("str0ng!pass", digest))
	})

	t.Run("salted", func(t *testing.T) {
		t.Parallel()
		a, err := h.Hash("same")
		require.NoError(t, err)
		b, err := h.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty and malformed digests never match", func(t *testing.T) {
		t.Parallel()
		assert.False(t, h.Verify("", ""))
		assert.False(t, h.Verify("secret", ""))
		assert.False(t, h.Verify("secret", "not-a-bcrypt-digest"))
		assert.False(t, h.Verify("secret", "$2a$04$short"))
	})

	t.Run("rejects secrets over 72 bytes", func(t *testing.T) {
		t.Parallel()
		_, err := h.Hash(strings.Repeat("a", 73))
		assert.ErrorIs(t, err, hasher.ErrSecretTooLong)
	})
}

func TestNewBcrypt_Cost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10, hasher.NewBcrypt(10).Cost())
	assert.Equal(t, bcrypt.DefaultCost, hasher.NewBcrypt(0).Cost())
	assert.Equal(t, bcrypt.DefaultCost, hasher.NewBcrypt(99).Cost())
	assert.Equal(t, 12, hasher.NewFromConfig(hasher.Config{Cost: 12}).Cost())
}
