package auth

import (
	"net/http"
	"time"
)

// Config is the environment-driven configuration of the account lifecycle.
type Config struct {
	ClientURL     string        `env:"CLIENT_URL" envDefault:"http://localhost:8080"`
	ActivationTTL time.Duration `env:"AUTH_ACTIVATION_TTL" envDefault:"24h"`
	ResetTTL      time.Duration `env:"AUTH_RESET_TTL" envDefault:"10m"`
	StateTTL      time.Duration `env:"AUTH_OAUTH_STATE_TTL" envDefault:"10m"`
	VerifiedOnly  bool          `env:"AUTH_OAUTH_VERIFIED_ONLY" envDefault:"true"`

	CookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"jwt"`
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN"`
	CookieDays   int    `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90"`
	CookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

// Options converts the configuration into constructor options. secure forces
// the Secure cookie attribute (production deployments).
func (c Config) Options(secure bool) []Option {
	return []Option{
		WithClientURL(c.ClientURL),
		WithActivationTTL(c.ActivationTTL),
		WithResetTTL(c.ResetTTL),
		WithStateTTL(c.StateTTL),
		WithVerifiedOnly(c.VerifiedOnly),
		WithCookiePolicy(CookiePolicy{
			Name:     c.CookieName,
			Path:     "/",
			Domain:   c.CookieDomain,
			MaxAge:   c.CookieDays * 24 * 60 * 60,
			Secure:   secure || c.CookieSecure,
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
		}),
	}
}
