package cookie

import (
	"net/http"
	"strings"
)

// Config holds cookie manager configuration. Secrets is a comma-separated
// list; the first entry signs.
type Config struct {
	Secrets  string `env:"COOKIE_SECRETS,required"`
	Domain   string `env:"COOKIE_DOMAIN"`
	Secure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	SameSite string `env:"COOKIE_SAME_SITE" envDefault:"lax"`
}

// NewFromConfig creates a Manager from cfg plus any extra options.
func NewFromConfig(cfg Config, opts ...Option) (*Manager, error) {
	base := []Option{WithSecure(cfg.Secure), WithSameSite(ParseSameSite(cfg.SameSite))}
	if cfg.Domain != "" {
		base = append(base, WithDomain(cfg.Domain))
	}
	return New(splitSecrets(cfg.Secrets), append(base, opts...)...)
}

// ParseSameSite maps "strict", "lax" and "none" onto http.SameSite.
// Anything else yields http.SameSiteLaxMode.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func splitSecrets(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
