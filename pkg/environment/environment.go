package environment

import (
	"context"
	"strings"
)

// Environment represents application environment.
type Environment string

const (
	// Development for development environment.
	Development Environment = "development"
	// Production for production environment.
	Production Environment = "production"
	// Staging for staging environment.
	Staging Environment = "staging"
	// Test for automated test runs.
	Test Environment = "test"
)

// Parse normalizes common aliases ("prod", "dev", "stage") to the canonical
// environment names. Unknown values are returned lower-cased as-is.
func Parse(s string) Environment {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "production", "prod", "live":
		return Production
	case "staging", "stage", "preview":
		return Staging
	case "development", "dev", "local":
		return Development
	case "test", "testing":
		return Test
	default:
		return Environment(v)
	}
}

// IsProduction reports whether env is the production environment.
func (e Environment) IsProduction() bool {
	return Parse(string(e)) == Production
}

func (e Environment) String() string {
	return string(e)
}

type contextKey struct{}

// WithContext adds environment to context
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext retrieves environment from context
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}
