package flagfile

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/feature"
)

// DefaultDebounce is how long Watch waits for writes to settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnChange registers a callback run after every successful reload
// triggered by Watch. feature.Client.Refresh fits here.
func WithOnChange(fn func(context.Context) error) Option {
	return func(s *Storage) {
		s.onChange = fn
	}
}

// WithDebounce sets the quiet period before a detected change is reloaded.
func WithDebounce(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithEvaluationSink forwards analytics to sink. Without a sink, evaluation
// records are logged at debug level and discarded.
func WithEvaluationSink(sink feature.BatchTracker) Option {
	return func(s *Storage) {
		s.sink = sink
	}
}
