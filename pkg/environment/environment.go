// Package environment names the deployment environments the service
// distinguishes between.
package environment

import "strings"

// Environment represents application environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config selects the current environment.
type Config struct {
	Env string `env:"APP_ENV" envDefault:"development"`
}

// Environment returns the parsed environment name.
func (c Config) Environment() Environment { return Parse(c.Env) }

// Parse maps free-form names ("prod", "Stage", ...) onto a known environment.
// Anything unrecognised is treated as development.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool { return e == Production }

func (e Environment) String() string { return string(e) }
