package featurekit

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/featurekit/pkg/feature"
)

// Option customizes New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	storage    feature.Storage
	registerer prometheus.Registerer
	clientOpts []feature.Option
}

// WithLogger replaces the environment-derived logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStorage uses s instead of the configured flag file.
func WithStorage(s feature.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithRegisterer registers metrics with reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithClientOptions appends client options after the configured ones.
func WithClientOptions(opts ...feature.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}
