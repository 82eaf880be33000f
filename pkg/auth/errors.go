package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/accountkit/pkg/validator"
)

// Kind classifies errors returned by this package so callers can map them
// onto transport responses without matching individual sentinels.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindTokenInvalid
	KindTokenExpired
	KindInvalidCredential
	KindLastCredential
	KindInactive
	KindUnauthenticated
	KindSessionSuperseded
	KindInvalid
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindTokenInvalid:
		return "token_invalid"
	case KindTokenExpired:
		return "token_expired"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindLastCredential:
		return "last_credential"
	case KindInactive:
		return "inactive"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindSessionSuperseded:
		return "session_superseded"
	case KindInvalid:
		return "invalid"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error { return &Error{kind: kind, msg: msg} }

func (e *Error) Error() string { return e.msg }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

// Account errors
var (
	ErrAccountNotFound   = newError(KindNotFound, "account not found")
	ErrEmailTaken        = newError(KindAlreadyExists, "email already registered")
	ErrEmailUnchanged    = newError(KindInvalid, "new email matches the current one")
	ErrInvalidCredential = newError(KindInvalidCredential, "incorrect email or password")
	ErrPasswordMismatch  = newError(KindInvalidCredential, "passwords do not match")
	ErrPasswordNotSet    = newError(KindInvalidCredential, "account has no password")
	ErrPasswordSet       = newError(KindAlreadyExists, "account already has a password")
	ErrAccountInactive   = newError(KindInactive, "account is not activated")
)

// Token errors
var (
	ErrTokenInvalid = newError(KindTokenInvalid, "token is invalid")
	ErrTokenExpired = newError(KindTokenExpired, "token has expired")
)

// Identity errors
var (
	ErrAlreadyLinked      = newError(KindAlreadyExists, "provider identity already linked")
	ErrNoProviderLink     = newError(KindNotFound, "provider is not linked")
	ErrLastCredential     = newError(KindLastCredential, "cannot remove the last credential")
	ErrUnknownProvider    = newError(KindInvalid, "unknown identity provider")
	ErrInvalidProviderID  = newError(KindInvalid, "provider identity is empty")
	ErrInvalidState       = newError(KindTokenInvalid, "invalid oauth state")
	ErrStateNotFound      = newError(KindNotFound, "oauth state not found or expired")
	ErrInvalidCode        = newError(KindInvalidCredential, "invalid oauth code")
	ErrUnverifiedEmail    = newError(KindInvalidCredential, "email not verified by provider")
	ErrNoPrimaryEmail     = newError(KindInvalidCredential, "provider returned no usable email")
	ErrProviderNotEnabled = newError(KindNotFound, "identity provider not enabled")
)

// Session errors
var (
	ErrSessionInvalid    = newError(KindUnauthenticated, "session is invalid")
	ErrSessionExpired    = newError(KindUnauthenticated, "session has expired")
	ErrSessionSuperseded = newError(KindSessionSuperseded, "session predates a credential change")
)

// Infrastructure errors
var (
	ErrUnavailable = newError(KindUnavailable, "account store unavailable")
	ErrDelivery    = newError(KindUnavailable, "notification delivery failed")

	// ErrConflict is returned by Store.Update when the stored version moved on.
	// Services retry on it and never return it directly.
	ErrConflict = newError(KindUnavailable, "concurrent account update")
)

// KindOf classifies err. Validation failures are KindInvalid.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	if validator.IsValidationError(err) {
		return KindInvalid
	}
	return KindUnknown
}

// opError wraps a failure with the operation name while keeping the
// classification sentinel and the cause reachable through errors.Is/As.
type opError struct {
	op       string
	sentinel *Error
	cause    error
}

func (e *opError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("auth: %s: %s", e.op, e.sentinel.msg)
	}
	return fmt.Sprintf("auth: %s: %s: %v", e.op, e.sentinel.msg, e.cause)
}

func (e *opError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.sentinel}
	}
	return []error{e.sentinel, e.cause}
}

func unavailable(op string, cause error) error {
	return &opError{op: op, sentinel: ErrUnavailable, cause: cause}
}

func deliveryFailed(op string, cause error) error {
	return &opError{op: op, sentinel: ErrDelivery, cause: cause}
}

// storeErr passes store sentinels through and wraps anything else as
// ErrUnavailable.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrAccountNotFound, ErrEmailTaken, ErrAlreadyLinked, ErrConflict, ErrStateNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}
	return unavailable(op, err)
}
