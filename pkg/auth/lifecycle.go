package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/sanitizer"
	"github.com/dmitrymomot/accountkit/pkg/token"
)

// IssuedToken is the result of issuing a single-use token. Opaque must be
// delivered to the account holder and is not stored anywhere.
type IssuedToken struct {
	Account   *Account
	Kind      TokenKind
	Opaque    string
	Digest    string
	ExpiresAt time.Time
}

// TokenManager issues, consumes and revokes activation and reset tokens.
type TokenManager struct {
	store Store
	opts  options
}

// NewTokenManager creates a TokenManager. Activation tokens default to 24
// hours and reset tokens to 10 minutes.
func NewTokenManager(store Store, opts ...Option) *TokenManager {
	return &TokenManager{store: store, opts: buildOptions(opts)}
}

// Issue creates a token of kind for the account registered under email,
// replacing any outstanding token of the same kind.
// Returns ErrAccountNotFound for unknown emails.
func (m *TokenManager) Issue(ctx context.Context, kind TokenKind, email string) (*IssuedToken, error) {
	email = sanitizer.NormalizeEmail(email)
	var issued IssuedToken

	acc, err := mutate(ctx, m.store, m.opts.now, "issue token",
		func(ctx context.Context) (*Account, error) {
			acc, err := m.store.FindByEmail(ctx, email)
			if err != nil {
				return nil, storeErr("issue token", err)
			}
			return acc, nil
		},
		func(acc *Account) error {
			opaque, pending, err := newPendingToken(m.opts.tokens, m.opts.now(), m.opts.ttl(kind))
			if err != nil {
				return unavailable("issue token", err)
			}
			acc.setPending(kind, &pending)
			issued = IssuedToken{Kind: kind, Opaque: opaque, Digest: pending.Digest, ExpiresAt: pending.ExpiresAt}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	issued.Account = acc
	m.opts.logger.DebugContext(ctx, "token issued",
		logger.AccountID(acc.ID),
		logger.TokenKind(kind.String()),
		logger.Component("token_lifecycle"),
	)
	return &issued, nil
}

// Consume validates opaque as the outstanding token of kind, clears it and
// applies change to the account in the same conditional write.
//
// Unknown, already consumed or superseded tokens yield ErrTokenInvalid;
// expired ones yield ErrTokenExpired and are left in place. When several
// callers race on one token at most one succeeds; the others get
// ErrTokenInvalid.
func (m *TokenManager) Consume(ctx context.Context, kind TokenKind, opaque string, change func(*Account) error) (*Account, error) {
	if opaque == "" {
		return nil, ErrTokenInvalid
	}
	digest := token.Digest(opaque)

	acc, err := mutate(ctx, m.store, m.opts.now, "consume token",
		func(ctx context.Context) (*Account, error) {
			acc, err := m.store.FindByTokenDigest(ctx, kind, digest)
			if errors.Is(err, ErrAccountNotFound) {
				return nil, ErrTokenInvalid
			}
			if err != nil {
				return nil, storeErr("consume token", err)
			}
			return acc, nil
		},
		func(acc *Account) error {
			if err := checkPending(acc.Pending(kind), digest, m.opts.now()); err != nil {
				return err
			}
			acc.setPending(kind, nil)
			if change != nil {
				return change(acc)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	m.opts.logger.InfoContext(ctx, "token consumed",
		logger.AccountID(acc.ID),
		logger.TokenKind(kind.String()),
		logger.Component("token_lifecycle"),
	)
	return acc, nil
}

// Revoke clears the outstanding token of kind if it still has digest. Used to
// undo an issuance whose notification could not be delivered.
func (m *TokenManager) Revoke(ctx context.Context, kind TokenKind, accountID uuid.UUID, digest string) error {
	_, err := mutate(ctx, m.store, m.opts.now, "revoke token",
		loadByID(m.store, accountID),
		func(acc *Account) error {
			p := acc.Pending(kind)
			if p == nil || !token.Equal(p.Digest, digest) {
				return errNoChange
			}
			acc.setPending(kind, nil)
			return nil
		},
	)
	return err
}
