package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
)

// DefaultSize is the number of random bytes behind each token.
const DefaultSize = 32

// Token is a freshly generated opaque token and its storage digest.
type Token struct {
	Opaque string
	Digest string
}

// Generator creates tokens.
type Generator interface {
	Generate() (Token, error)
}

// RandomGenerator reads token entropy from a cryptographic source.
type RandomGenerator struct {
	size   int
	source io.Reader
}

// Option configures a RandomGenerator.
type Option func(*RandomGenerator)

// WithSize overrides the number of random bytes. Sizes below DefaultSize
// make Generate fail.
func WithSize(n int) Option {
	return func(g *RandomGenerator) { g.size = n }
}

// WithSource replaces crypto/rand.Reader. Intended for tests.
func WithSource(r io.Reader) Option {
	return func(g *RandomGenerator) {
		if r != nil {
			g.source = r
		}
	}
}

// NewGenerator returns a RandomGenerator producing DefaultSize-byte tokens
// encoded as lowercase hex.
func NewGenerator(opts ...Option) *RandomGenerator {
	g := &RandomGenerator{size: DefaultSize, source: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new token.
func (g *RandomGenerator) Generate() (Token, error) {
	if g.size < DefaultSize {
		return Token{}, ErrSize
	}
	buf := make([]byte, g.size)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return Token{}, errors.Join(ErrEntropy, err)
	}
	opaque := hex.EncodeToString(buf)
	return Token{Opaque: opaque, Digest: Digest(opaque)}, nil
}

// Generate returns a token from the default generator.
func Generate() (Token, error) {
	return NewGenerator().Generate()
}

// Digest returns the storage form of an opaque token.
func Digest(opaque string) string {
	sum := sha256.Sum256([]byte(opaque))
	return hex.EncodeToString(sum[:])
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var _ Generator = (*RandomGenerator)(nil)
