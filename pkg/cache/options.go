package cache

import (
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultMaxEntries      = 1000
	DefaultTTL             = 5 * time.Minute
	DefaultPersistTimeout  = 500 * time.Millisecond
	DefaultQuotaEvictBatch = 10
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	maxEntries      int
	ttl             time.Duration
	include         []string
	exclude         []string
	cleanupInterval time.Duration
	persister       Persister
	persistTimeout  time.Duration
	quotaEvictBatch int
	isQuota         func(error) bool
	now             func() time.Time
	logger          *slog.Logger
	sessionID       string
}

func defaultOptions() options {
	return options{
		maxEntries:      DefaultMaxEntries,
		ttl:             DefaultTTL,
		persistTimeout:  DefaultPersistTimeout,
		quotaEvictBatch: DefaultQuotaEvictBatch,
		isQuota:         func(err error) bool { return errors.Is(err, ErrQuotaExceeded) },
		now:             time.Now,
		logger:          slog.Default(),
	}
}

// WithMaxEntries bounds the number of in-memory entries. Non-positive values are ignored.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithTTL sets the TTL used when Set is called with a non-positive ttl.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithInclude restricts caching to keys matching at least one glob pattern.
// Patterns use path.Match syntax and are matched against the full key.
func WithInclude(patterns ...string) Option {
	return func(o *options) {
		o.include = append(o.include, patterns...)
	}
}

// WithExclude prevents caching of keys matching any glob pattern.
// Exclusion wins over inclusion.
func WithExclude(patterns ...string) Option {
	return func(o *options) {
		o.exclude = append(o.exclude, patterns...)
	}
}

// WithCleanupInterval starts a background sweep of expired entries.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// WithPersister mirrors entries into p.
func WithPersister(p Persister) Option {
	return func(o *options) {
		o.persister = p
	}
}

// WithPersistTimeout bounds every persister call.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.persistTimeout = d
		}
	}
}

// WithQuotaEvictBatch sets how many of the oldest persisted keys are removed
// when the persister reports a quota error.
func WithQuotaEvictBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.quotaEvictBatch = n
		}
	}
}

// WithQuotaClassifier replaces the check that decides whether a persister
// error means the storage is full.
func WithQuotaClassifier(fn func(error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.isQuota = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSessionID sets the initial active session.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}
