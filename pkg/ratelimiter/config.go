package ratelimiter

import (
	"fmt"
	"time"
)

// Config defines a token bucket. A fresh key starts with Capacity tokens and
// gains RefillRate tokens every RefillInterval, never exceeding Capacity.
type Config struct {
	Capacity       int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
	RefillRate     int           `env:"AUTH_RATE_LIMIT_REFILL" envDefault:"1"`
	RefillInterval time.Duration `env:"AUTH_RATE_LIMIT_INTERVAL" envDefault:"1m"`
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// ttl is how long an idle bucket must be kept before it is indistinguishable
// from a fresh one.
func (c Config) ttl() time.Duration {
	intervals := (c.Capacity + c.RefillRate - 1) / c.RefillRate
	return time.Duration(intervals+1) * c.RefillInterval
}
