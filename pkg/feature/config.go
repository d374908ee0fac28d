package feature

import (
	"time"

	"github.com/dmitrymomot/featurekit/pkg/cache"
	"github.com/dmitrymomot/featurekit/pkg/override"
	"github.com/dmitrymomot/featurekit/pkg/poller"
	"github.com/dmitrymomot/featurekit/pkg/sanitizer"
)

// Config is the environment-driven client configuration.
type Config struct {
	OrganizationID string   `env:"FEATURE_ORGANIZATION_ID"`
	Tags           []string `env:"FEATURE_TAGS" envSeparator:","`
	EnabledOnly    bool     `env:"FEATURE_ENABLED_ONLY" envDefault:"false"`

	TrackingEnabled        bool          `env:"FEATURE_TRACKING_ENABLED" envDefault:"true"`
	TrackingBufferSize     int           `env:"FEATURE_TRACKING_BUFFER_SIZE" envDefault:"1000"`
	TrackingBatchSize      int           `env:"FEATURE_TRACKING_BATCH_SIZE" envDefault:"100"`
	TrackingBatchTimeout   time.Duration `env:"FEATURE_TRACKING_BATCH_TIMEOUT" envDefault:"1s"`
	TrackingStorageTimeout time.Duration `env:"FEATURE_TRACKING_STORAGE_TIMEOUT" envDefault:"5s"`

	Cache     cache.Config
	Overrides override.Config
	Poller    poller.Config
	Sanitizer sanitizer.Config
}

// FromConfig converts cfg into client options.
func FromConfig(cfg Config) []Option {
	opts := []Option{
		WithOrganization(cfg.OrganizationID),
		WithListFilter(ListFilter{Tags: cfg.Tags, EnabledOnly: cfg.EnabledOnly}),
		WithCacheOptions(cache.FromConfig(cfg.Cache)...),
		WithOverrideOptions(override.FromConfig(cfg.Overrides)...),
		WithPollerOptions(poller.FromConfig(cfg.Poller)...),
		WithSanitizerOptions(sanitizer.FromConfig(cfg.Sanitizer)...),
		WithTrackerOptions(TrackerOptions{
			BufferSize:     cfg.TrackingBufferSize,
			BatchSize:      cfg.TrackingBatchSize,
			BatchTimeout:   cfg.TrackingBatchTimeout,
			StorageTimeout: cfg.TrackingStorageTimeout,
		}),
	}
	if !cfg.TrackingEnabled {
		opts = append(opts, WithoutTracking())
	}
	return opts
}
