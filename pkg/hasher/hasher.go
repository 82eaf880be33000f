// Package hasher turns plaintext secrets into one-way digests and checks
// plaintext candidates against them.
package hasher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrSecretTooLong is returned for secrets bcrypt would silently truncate.
var ErrSecretTooLong = errors.New("hasher: secret exceeds 72 bytes")

const maxSecretBytes = 72

// Config holds the bcrypt work factor.
type Config struct {
	Cost int `env:"PASSWORD_HASH_COST" envDefault:"12"`
}

// Hasher hashes and verifies secrets.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// Bcrypt is a Hasher backed by golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a Bcrypt hasher. Costs outside bcrypt's accepted range
// fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// NewFromConfig returns a Bcrypt hasher using cfg.Cost.
func NewFromConfig(cfg Config) *Bcrypt {
	return NewBcrypt(cfg.Cost)
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int { return b.cost }

// Hash returns a salted bcrypt digest of plain.
func (b *Bcrypt) Hash(plain string) (string, error) {
	if len(plain) > maxSecretBytes {
		return "", ErrSecretTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("hasher: generate: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. Empty or malformed digests
// never match.
func (b *Bcrypt) Verify(plain, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

var _ Hasher = (*Bcrypt)(nil)
