package auth

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/token"
)

// maxUpdateAttempts bounds retries of a conditional update after ErrConflict.
const maxUpdateAttempts = 3

// errNoChange lets a mutation report that the account already has the desired
// state and no write is needed.
var errNoChange = errors.New("no change")

// newPendingToken generates a token valid for window from now. Only the digest
// half is meant to be stored.
func newPendingToken(gen token.Generator, now time.Time, window time.Duration) (string, PendingToken, error) {
	tok, err := gen.Generate()
	if err != nil {
		return "", PendingToken{}, err
	}
	return tok.Opaque, PendingToken{Digest: tok.Digest, ExpiresAt: now.Add(window)}, nil
}

// checkPending validates a presented digest against the stored token.
func checkPending(p *PendingToken, digest string, now time.Time) error {
	if p == nil || !token.Equal(p.Digest, digest) {
		return ErrTokenInvalid
	}
	if !now.Before(p.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// withoutProvider returns ids minus every entry of provider p.
func withoutProvider(ids []Identity, p Provider) []Identity {
	return slices.DeleteFunc(slices.Clone(ids), func(i Identity) bool { return i.Provider == p })
}

// checkUnlink reports whether removing provider p leaves a usable credential.
func checkUnlink(acc *Account, p Provider) error {
	if !acc.HasProvider(p) {
		return ErrNoProviderLink
	}
	if !acc.Password.IsSet() && len(withoutProvider(acc.Identities, p)) == 0 {
		return ErrLastCredential
	}
	return nil
}

// superseded reports whether a session issued at iat predates the last
// credential change. Both sides are compared in milliseconds, the finest
// precision every store keeps.
func superseded(iat, changedAt time.Time) bool {
	if changedAt.IsZero() {
		return false
	}
	return iat.UnixMilli() < changedAt.UnixMilli()
}

// mutate loads an account, applies change and writes it back conditionally,
// retrying from a fresh read when another writer got there first.
func mutate(
	ctx context.Context,
	store Store,
	now func() time.Time,
	op string,
	load func(context.Context) (*Account, error),
	change func(*Account) error,
) (*Account, error) {
	for range maxUpdateAttempts {
		acc, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := change(acc); err != nil {
			if errors.Is(err, errNoChange) {
				return acc, nil
			}
			return nil, err
		}
		acc.UpdatedAt = now()

		err = store.Update(ctx, acc)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, storeErr(op, err)
		}
		return acc, nil
	}
	return nil, unavailable(op, ErrConflict)
}

// loadByID is a mutate loader for a known account id.
func loadByID(store Store, id uuid.UUID) func(context.Context) (*Account, error) {
	return func(ctx context.Context) (*Account, error) {
		acc, err := store.FindByID(ctx, id)
		if err != nil {
			return nil, storeErr("find account", err)
		}
		return acc, nil
	}
}
