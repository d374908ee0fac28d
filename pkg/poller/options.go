package poller

import (
	"log/slog"
	"time"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultMaxInterval = 5 * time.Minute
	DefaultMaxJitter   = 0.25
	backoffCeiling     = 10
)

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the base interval between successful polls.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.base = d
		}
	}
}

// WithMaxInterval sets the absolute upper bound of the backoff interval.
// The effective bound is the smaller of this value and ten times the base.
func WithMaxInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.absMax = d
		}
	}
}

// WithMaxJitter sets the exclusive upper bound of the jitter fraction.
// Values outside [0, 1) are ignored.
func WithMaxJitter(f float64) Option {
	return func(p *Poller) {
		if f >= 0 && f < 1 {
			p.maxJitter = f
		}
	}
}

// WithRandom replaces the random source. fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(p *Poller) {
		if fn != nil {
			p.random = fn
		}
	}
}

// WithOnError registers a callback for failed polls.
func WithOnError(fn func(error)) Option {
	return func(p *Poller) {
		p.onError = fn
	}
}

// WithObserver registers a callback invoked after every poll with its
// error (nil on success) and the interval that will be used next.
func WithObserver(fn func(err error, next time.Duration)) Option {
	return func(p *Poller) {
		p.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}
