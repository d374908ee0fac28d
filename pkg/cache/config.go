package cache

import "time"

// Config is the environment-driven cache configuration.
type Config struct {
	MaxEntries      int           `env:"FEATURE_CACHE_MAX_ENTRIES" envDefault:"1000"`
	TTL             time.Duration `env:"FEATURE_CACHE_TTL" envDefault:"5m"`
	Include         []string      `env:"FEATURE_CACHE_INCLUDE" envSeparator:","`
	Exclude         []string      `env:"FEATURE_CACHE_EXCLUDE" envSeparator:","`
	CleanupInterval time.Duration `env:"FEATURE_CACHE_CLEANUP_INTERVAL" envDefault:"0"`
	PersistTimeout  time.Duration `env:"FEATURE_CACHE_PERSIST_TIMEOUT" envDefault:"500ms"`
	QuotaEvictBatch int           `env:"FEATURE_CACHE_QUOTA_EVICT_BATCH" envDefault:"10"`
}

// FromConfig converts cfg into options. Zero values keep the defaults.
func FromConfig(cfg Config) []Option {
	opts := []Option{
		WithInclude(cfg.Include...),
		WithExclude(cfg.Exclude...),
	}
	if cfg.MaxEntries > 0 {
		opts = append(opts, WithMaxEntries(cfg.MaxEntries))
	}
	if cfg.TTL > 0 {
		opts = append(opts, WithTTL(cfg.TTL))
	}
	if cfg.CleanupInterval > 0 {
		opts = append(opts, WithCleanupInterval(cfg.CleanupInterval))
	}
	if cfg.PersistTimeout > 0 {
		opts = append(opts, WithPersistTimeout(cfg.PersistTimeout))
	}
	if cfg.QuotaEvictBatch > 0 {
		opts = append(opts, WithQuotaEvictBatch(cfg.QuotaEvictBatch))
	}
	return opts
}
