package token

import "errors"

var (
	ErrEntropy = errors.New("token: failed to read random bytes")
	ErrSize    = errors.New("token: size must be at least 32 bytes")
)
