package token_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accountkit/pkg/token"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("hex opaque with matching digest", func(t *testing.T) {
		t.Parallel()
		tok, err := token.Generate()
		require.NoError(t, err)
		assert.Len(t, tok.Opaque, 2*token.DefaultSize)
		assert.Len(t, tok.Digest, 64)
		assert.NotEqual(t, tok.Opaque, tok.Digest)
		assert.Equal(t, token.Digest(tok.Opaque), tok.Digest)
	})

	t.Run("unique", func(t *testing.T) {
		t.Parallel()
		seen := make(map[string]struct{}, 100)
		for range 100 {
			tok, err := token.Generate()
			require.NoError(t, err)
			_, dup := seen[tok.Opaque]
			require.False(t, dup)
			seen[tok.Opaque] = struct{}{}
		}
	})

	t.Run("deterministic source", func(t *testing.T) {
		t.Parallel()
		g := token.NewGenerator(token.WithSource(bytes.NewReader(make([]byte, 32))))
		tok, err := g.Generate()
		require.NoError(t, err)
		assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000000", tok.Opaque)
	})

	t.Run("entropy failure", func(t *testing.T) {
		t.Parallel()
		_, err := token.NewGenerator(token.WithSource(failingReader{})).Generate()
		assert.ErrorIs(t, err, token.ErrEntropy)
	})

	t.Run("size too small", func(t *testing.T) {
		t.Parallel()
		_, err := token.NewGenerator(token.WithSize(8)).Generate()
		assert.ErrorIs(t, err, token.ErrSize)
	})

	t.Run("below 256 bits", func(t *testing.T) {
		t.Parallel()
		_, err := token.NewGenerator(token.WithSize(token.DefaultSize - 1)).Generate()
		assert.ErrorIs(t, err, token.ErrSize)
	})

	t.Run("larger size", func(t *testing.T) {
		t.Parallel()
		tok, err := token.NewGenerator(token.WithSize(64)).Generate()
		require.NoError(t, err)
		assert.Len(t, tok.Opaque, 128)
	})
}

func TestEqual(t *testing.T) {
	t.Parallel()

	d := token.Digest("abc")
	assert.True(t, token.Equal(d, token.Digest("abc")))
	assert.False(t, token.Equal(d, token.Digest("abd")))
	assert.False(t, token.Equal(d, ""))
}
