package feature

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/cache"
	"github.com/dmitrymomot/featurekit/pkg/override"
	"github.com/dmitrymomot/featurekit/pkg/poller"
	"github.com/dmitrymomot/featurekit/pkg/sanitizer"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger           *slog.Logger
	metrics          MetricsRecorder
	now              func() time.Time
	organizationID   string
	filter           ListFilter
	cacheOpts        []cache.Option
	flagCacheOpts    []cache.Option
	overrideOpts     []override.Option
	pollerOpts       []poller.Option
	sanitizerOpts    []sanitizer.Option
	trackerOpts      TrackerOptions
	trackingDisabled bool
}

// WithLogger sets the logger shared by all client components.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// WithClock overrides the clock used by the engine.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithOrganization scopes background refreshes to one organization.
func WithOrganization(orgID string) Option {
	return func(o *clientOptions) {
		o.organizationID = orgID
	}
}

// WithListFilter narrows the flags fetched by Refresh.
func WithListFilter(f ListFilter) Option {
	return func(o *clientOptions) {
		o.filter = f
	}
}

// WithCacheOptions configures the evaluation result cache.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *clientOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// WithFlagCacheOptions configures the cache holding the polled flag batch.
func WithFlagCacheOptions(opts ...cache.Option) Option {
	return func(o *clientOptions) {
		o.flagCacheOpts = append(o.flagCacheOpts, opts...)
	}
}

// WithOverrideOptions configures the local override manager.
func WithOverrideOptions(opts ...override.Option) Option {
	return func(o *clientOptions) {
		o.overrideOpts = append(o.overrideOpts, opts...)
	}
}

// WithPollerOptions configures the background refresh schedule.
func WithPollerOptions(opts ...poller.Option) Option {
	return func(o *clientOptions) {
		o.pollerOpts = append(o.pollerOpts, opts...)
	}
}

// WithSanitizerOptions configures the transport context sanitizer.
func WithSanitizerOptions(opts ...sanitizer.Option) Option {
	return func(o *clientOptions) {
		o.sanitizerOpts = append(o.sanitizerOpts, opts...)
	}
}

// WithTrackerOptions configures analytics batching.
func WithTrackerOptions(opts TrackerOptions) Option {
	return func(o *clientOptions) {
		o.trackerOpts = opts
	}
}

// WithoutTracking disables analytics.
func WithoutTracking() Option {
	return func(o *clientOptions) {
		o.trackingDisabled = true
	}
}
