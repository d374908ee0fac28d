package override

import "time"

// Config is the environment-driven override configuration.
type Config struct {
	Environment       string        `env:"FEATURE_OVERRIDES_ENV"` // Empty means auto-detect.
	AllowInProduction bool          `env:"FEATURE_OVERRIDES_ALLOW_IN_PRODUCTION" envDefault:"false"`
	TTL               time.Duration `env:"FEATURE_OVERRIDES_TTL" envDefault:"0"` // Zero means overrides never expire.
	SweepInterval     time.Duration `env:"FEATURE_OVERRIDES_SWEEP_INTERVAL" envDefault:"60s"`
	StorageKey        string        `env:"FEATURE_OVERRIDES_STORAGE_KEY" envDefault:"overrides"`
}

// FromConfig converts cfg into options.
func FromConfig(cfg Config) []Option {
	opts := []Option{
		WithAllowInProduction(cfg.AllowInProduction),
		WithTTL(cfg.TTL),
	}
	if cfg.Environment != "" {
		opts = append(opts, WithEnvironmentName(cfg.Environment))
	}
	if cfg.SweepInterval > 0 {
		opts = append(opts, WithSweepInterval(cfg.SweepInterval))
	}
	if cfg.StorageKey != "" {
		opts = append(opts, WithStorageKey(cfg.StorageKey))
	}
	return opts
}
