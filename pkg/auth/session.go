package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/jwt"
	"github.com/dmitrymomot/accountkit/pkg/logger"
)

// CookiePolicy describes how a caller should store the session token in a
// cookie. The issuer never writes cookies itself.
type CookiePolicy struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   int // seconds; negative means delete
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Session is a signed session token plus its cookie attributes.
type Session struct {
	Token     string
	AccountID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Cookie    CookiePolicy
}

// SessionIssuer signs session tokens and validates presented ones against the
// current account record.
type SessionIssuer struct {
	store  Store
	signer *jwt.Service
	opts   options
}

// NewSessionIssuer creates a SessionIssuer. The cookie defaults to "jwt",
// HttpOnly, SameSite=Lax and a lifetime equal to the token TTL.
func NewSessionIssuer(store Store, signer *jwt.Service, opts ...Option) *SessionIssuer {
	return &SessionIssuer{store: store, signer: signer, opts: buildOptions(opts)}
}

// Issue signs a session for the account issued at issuedAt.
func (s *SessionIssuer) Issue(accountID uuid.UUID, issuedAt time.Time) (*Session, error) {
	raw, expiresAt, err := s.signer.Issue(accountID.String(), issuedAt)
	if err != nil {
		return nil, err
	}

	policy := s.opts.cookie
	if policy.MaxAge <= 0 {
		policy.MaxAge = int(s.signer.TTL() / time.Second)
	}
	policy.Expires = issuedAt.Add(time.Duration(policy.MaxAge) * time.Second)

	return &Session{
		Token:     raw,
		AccountID: accountID,
		IssuedAt:  issuedAt.Truncate(time.Millisecond),
		ExpiresAt: expiresAt,
		Cookie:    policy,
	}, nil
}

// Validate checks the token signature and expiry, loads the account and
// rejects sessions issued before the account's last credential change.
func (s *SessionIssuer) Validate(ctx context.Context, raw string) (*Account, error) {
	claims, err := s.signer.Parse(raw)
	if errors.Is(err, jwt.ErrExpiredToken) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, ErrSessionInvalid
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	acc, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, storeErr("validate session", err)
	}

	if superseded(claims.Issued(), acc.PasswordChangedAt) {
		s.opts.logger.DebugContext(ctx, "superseded session rejected",
			logger.AccountID(acc.ID),
			logger.Component("session"),
		)
		return nil, ErrSessionSuperseded
	}
	return acc, nil
}

// ExpiredCookie returns the policy that clears the session cookie.
func (s *SessionIssuer) ExpiredCookie() CookiePolicy {
	policy := s.opts.cookie
	policy.MaxAge = -1
	policy.Expires = time.Unix(0, 0)
	return policy
}
