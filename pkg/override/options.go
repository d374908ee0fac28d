package override

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/environment"
)

const (
	DefaultSweepInterval = 60 * time.Second
	DefaultStorageKey    = "overrides"
	storeTimeout         = 2 * time.Second
)

// Option configures a Manager.
type Option func(*Manager)

// WithEnvironment pins the environment instead of detecting it.
func WithEnvironment(env environment.Environment) Option {
	return func(m *Manager) {
		m.env = env
	}
}

// WithEnvironmentName pins the environment from a name such as "prod" or "dev".
func WithEnvironmentName(name string) Option {
	return func(m *Manager) {
		m.env = environment.Parse(name)
	}
}

// WithAllowInProduction permits overrides in production.
func WithAllowInProduction(allow bool) Option {
	return func(m *Manager) {
		m.allowInProduction = allow
	}
}

// WithTTL sets the lifetime used by Set. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl >= 0 {
			m.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired overrides are removed.
// Non-positive values disable the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.sweepInterval = d
	}
}

// WithStore enables persistence through store.
func WithStore(store BlobStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithStorageKey sets the key of the persisted blob.
func WithStorageKey(key string) Option {
	return func(m *Manager) {
		m.storageKey = key
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
