package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/accountkit/pkg/hasher"
	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/token"
	"github.com/dmitrymomot/accountkit/pkg/validator"
)

// Option configures the components of this package. Every constructor accepts
// the same option set and ignores the ones it does not use.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	now           func() time.Time
	tokens        token.Generator
	hasher        hasher.Hasher
	policy        validator.PasswordPolicy
	activationTTL time.Duration
	resetTTL      time.Duration
	stateTTL      time.Duration
	verifiedOnly  bool
	clientURL     string
	cookie        CookiePolicy
}

func defaultOptions() options {
	return options{
		logger:        logger.Discard(),
		now:           time.Now,
		tokens:        token.NewGenerator(),
		hasher:        hasher.NewBcrypt(12),
		policy:        validator.DefaultPasswordPolicy(),
		activationTTL: 24 * time.Hour,
		resetTTL:      10 * time.Minute,
		stateTTL:      10 * time.Minute,
		verifiedOnly:  true,
		clientURL:     "http://localhost:8080",
		cookie: CookiePolicy{
			Name:     "jwt",
			Path:     "/",
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenGenerator replaces the random token generator.
func WithTokenGenerator(g token.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.tokens = g
		}
	}
}

// WithHasher replaces the password hasher.
func WithHasher(h hasher.Hasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithPasswordPolicy sets the strength rules for new passwords.
func WithPasswordPolicy(p validator.PasswordPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithActivationTTL sets how long activation links stay valid.
func WithActivationTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.activationTTL = d
		}
	}
}

// WithResetTTL sets how long password reset links stay valid.
func WithResetTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.resetTTL = d
		}
	}
}

// WithStateTTL sets the lifetime of OAuth state values.
func WithStateTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stateTTL = d
		}
	}
}

// WithVerifiedOnly rejects provider profiles whose email is not verified.
func WithVerifiedOnly(v bool) Option {
	return func(o *options) { o.verifiedOnly = v }
}

// WithClientURL sets the base URL used to build links in notifications.
func WithClientURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.clientURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCookiePolicy sets the session cookie attributes. MaxAge and Expires
// are filled in per session.
func WithCookiePolicy(p CookiePolicy) Option {
	return func(o *options) {
		if p.Name != "" {
			o.cookie = p
		}
	}
}

func (o options) ttl(kind TokenKind) time.Duration {
	if kind == TokenReset {
		return o.resetTTL
	}
	return o.activationTTL
}

func (o options) link(kind TokenKind, opaque string) string {
	switch kind {
	case TokenReset:
		return o.clientURL + "/reset-password/" + opaque
	default:
		return o.clientURL + "/activate/" + opaque
	}
}
