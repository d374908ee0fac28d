package poller

import "time"

// Config is the environment-driven poller configuration.
type Config struct {
	Interval    time.Duration `env:"FEATURE_POLL_INTERVAL" envDefault:"30s"`
	MaxInterval time.Duration `env:"FEATURE_POLL_MAX_INTERVAL" envDefault:"5m"`
	MaxJitter   float64       `env:"FEATURE_POLL_MAX_JITTER" envDefault:"0.25"`
}

// FromConfig converts cfg into options.
func FromConfig(cfg Config) []Option {
	return []Option{
		WithInterval(cfg.Interval),
		WithMaxInterval(cfg.MaxInterval),
		WithMaxJitter(cfg.MaxJitter),
	}
}
