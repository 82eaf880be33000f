package account

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrStateMismatch        = errors.New("oauth state does not match this browser")
)
