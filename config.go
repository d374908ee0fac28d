package featurekit

import (
	"errors"

	"github.com/dmitrymomot/featurekit/pkg/config"
	"github.com/dmitrymomot/featurekit/pkg/feature"
	"github.com/dmitrymomot/featurekit/pkg/redis"
)

// Config is the top-level runtime configuration.
type Config struct {
	Environment    string `env:"FEATURE_ENV"` // Empty means auto-detect.
	ServiceName    string `env:"FEATURE_SERVICE_NAME" envDefault:"featurekit"`
	FlagFile       string `env:"FEATURE_FLAG_FILE"`
	WatchFlagFile  bool   `env:"FEATURE_FLAG_FILE_WATCH" envDefault:"true"`
	RedisEnabled   bool   `env:"FEATURE_REDIS_ENABLED" envDefault:"false"`
	MetricsEnabled bool   `env:"FEATURE_METRICS_ENABLED" envDefault:"true"`

	Client feature.Config
	Redis  redis.Config
}

// LoadConfig reads Config from the environment and an optional .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, errors.Join(ErrLoadConfig, err)
	}
	return cfg, nil
}
