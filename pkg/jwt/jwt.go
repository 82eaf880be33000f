package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const minKeyLength = 32

// Config holds session token settings.
type Config struct {
	SigningKey string        `env:"JWT_SECRET,required"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"accountkit"`
	TTL        time.Duration `env:"JWT_TTL" envDefault:"2160h"` // 90 days
}

// Claims are the claims carried by a session token. IssuedAtMilli repeats
// iat at millisecond precision.
type Claims struct {
	gojwt.RegisteredClaims
	IssuedAtMilli int64 `json:"iat_ms,omitempty"`
}

// Issued returns the issuance time at the best precision the token carries.
func (c *Claims) Issued() time.Time {
	if c.IssuedAtMilli > 0 {
		return time.UnixMilli(c.IssuedAtMilli)
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// Service signs and verifies tokens with a single HMAC key.
type Service struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the iss claim written and required by the service.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithTTL sets how long issued tokens stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service. The key must be at least 32 bytes.
func New(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	if len(key) < minKeyLength {
		return nil, ErrWeakSigningKey
	}
	s := &Service{
		key: key,
		ttl: 90 * 24 * time.Hour,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromConfig creates a Service from Config.
func NewFromConfig(cfg Config, opts ...Option) (*Service, error) {
	base := []Option{WithIssuer(cfg.Issuer), WithTTL(cfg.TTL)}
	return New([]byte(cfg.SigningKey), append(base, opts...)...)
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token for subject issued at issuedAt. It returns the token and
// its expiry.
func (s *Service) Issue(subject string, issuedAt time.Time) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	expiresAt := issuedAt.Add(s.ttl)
	claims := Claims{RegisteredClaims: gojwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  gojwt.NewNumericDate(issuedAt),
		ExpiresAt: gojwt.NewNumericDate(expiresAt),
	}, IssuedAtMilli: issuedAt.UnixMilli()}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Parse verifies the signature, algorithm, issuer and expiry of raw and
// returns its claims.
func (s *Service) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, gojwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	tok, err := gojwt.ParseWithClaims(raw, claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	}, parserOpts...)
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.Join(ErrExpiredToken, err)
	case err != nil:
		return nil, errors.Join(ErrInvalidToken, err)
	case !tok.Valid:
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
