package account

import "time"

// Config controls the browser-facing parts of the OAuth round trip.
type Config struct {
	SuccessRedirect string        `env:"OAUTH_SUCCESS_REDIRECT" envDefault:"/profile"`
	FailureRedirect string        `env:"OAUTH_FAILURE_REDIRECT" envDefault:"/login"`
	StateCookie     string        `env:"OAUTH_STATE_COOKIE" envDefault:"oauth_state"`
	StateCookieTTL  time.Duration `env:"AUTH_OAUTH_STATE_TTL" envDefault:"10m"`
	MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"65536"`
}

func (c Config) withDefaults() Config {
	if c.SuccessRedirect == "" {
		c.SuccessRedirect = "/profile"
	}
	if c.FailureRedirect == "" {
		c.FailureRedirect = "/login"
	}
	if c.StateCookie == "" {
		c.StateCookie = "oauth_state"
	}
	if c.StateCookieTTL <= 0 {
		c.StateCookieTTL = 10 * time.Minute
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	return c
}
