package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists accounts.
//
// Implementations enforce uniqueness of Email and of every Identity across
// all accounts. Returned accounts are copies owned by the caller.
type Store interface {
	// Create inserts a new account with Version 0.
	// Returns ErrEmailTaken or ErrAlreadyLinked on uniqueness violations.
	Create(ctx context.Context, acc *Account) error

	// FindByID returns ErrAccountNotFound when absent. The same applies to
	// the other Find methods.
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByIdentity(ctx context.Context, id Identity) (*Account, error)

	// FindByTokenDigest finds the account whose pending token of kind has
	// the given digest, regardless of expiry.
	FindByTokenDigest(ctx context.Context, kind TokenKind, digest string) (*Account, error)

	// Update writes every mutable field of acc if the stored version still
	// equals acc.Version, then increments acc.Version. A moved version yields
	// ErrConflict; uniqueness violations yield ErrEmailTaken or
	// ErrAlreadyLinked.
	Update(ctx context.Context, acc *Account) error
}

// StateStore keeps short-lived OAuth state values.
type StateStore interface {
	StoreState(ctx context.Context, state string, ttl time.Duration) error
	// ConsumeState deletes state and returns ErrStateNotFound if it was
	// absent or expired. Only one caller can consume a given state.
	ConsumeState(ctx context.Context, state string) error
}
