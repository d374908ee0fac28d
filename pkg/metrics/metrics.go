package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/featurekit/pkg/cache"
	"github.com/dmitrymomot/featurekit/pkg/feature"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "featurekit"

// Collector records flag evaluation telemetry in Prometheus.
// It implements feature.MetricsRecorder, and ObservePoll fits
// poller.WithObserver.
type Collector struct {
	evaluations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	polls        *prometheus.CounterVec
	pollInterval prometheus.Gauge

	reg       prometheus.Registerer
	namespace string
}

var _ feature.MetricsRecorder = (*Collector)(nil)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace string
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// New creates a collector and registers it with reg.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	ns := o.namespace

	c := &Collector{
		reg:       reg,
		namespace: ns,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "evaluations_total",
			Help:      "Flag evaluations by flag, reason and source.",
		}, []string{"flag", "reason", "source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "evaluation_duration_seconds",
			Help:      "Flag evaluation latency by reason.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Flag refresh polls by status.",
		}, []string{"status"}),
		pollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "poller",
			Name:      "interval_seconds",
			Help:      "Current poll interval before jitter.",
		}),
	}

	if err := c.register(c.evaluations, c.duration, c.cacheLookups, c.polls, c.pollInterval); err != nil {
		return nil, err
	}
	return c, nil
}

// RegisterCache exports cache counters read from stats at scrape time.
// Pass Client.Cache().StatsSnapshot.
func (c *Collector) RegisterCache(stats func() cache.Stats) error {
	return c.register(cacheCollectors(c.namespace, stats)...)
}

// RegisterTracker exports the analytics drop and failure counters of t.
func (c *Collector) RegisterTracker(t *feature.Tracker) error {
	if t == nil {
		return nil
	}
	return c.register(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "tracker",
			Name:      "dropped_total",
			Help:      "Analytics events dropped because the buffer was full.",
		}, func() float64 { return float64(t.Dropped()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "tracker",
			Name:      "failed_total",
			Help:      "Analytics events whose storage write failed.",
		}, func() float64 { return float64(t.Failed()) }),
	)
}

func (c *Collector) register(collectors ...prometheus.Collector) error {
	var errs []error
	for _, col := range collectors {
		if err := c.reg.Register(col); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return errors.Join(ErrRegister, err)
	}
	return nil
}

func cacheCollectors(ns string, stats func() cache.Stats) []prometheus.Collector {
	counter := func(name, help string, read func(cache.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries held in memory.",
		}, func() float64 { return float64(stats().Entries) }),
		counter("evictions_total", "Entries evicted for capacity.", func(s cache.Stats) uint64 { return s.Evictions }),
		counter("expirations_total", "Entries dropped on TTL or session mismatch.", func(s cache.Stats) uint64 { return s.Expirations }),
		counter("persist_errors_total", "Failed persistence operations.", func(s cache.Stats) uint64 { return s.PersistErrors }),
		counter("quota_evictions_total", "Persisted entries evicted on quota errors.", func(s cache.Stats) uint64 { return s.QuotaEvictions }),
	}
}

// ObserveEvaluation implements feature.MetricsRecorder.
func (c *Collector) ObserveEvaluation(flagKey string, reason feature.Reason, source feature.Source, d time.Duration) {
	c.evaluations.WithLabelValues(flagKey, string(reason), string(source)).Inc()
	c.duration.WithLabelValues(string(reason)).Observe(d.Seconds())
}

// ObserveCacheLookup implements feature.MetricsRecorder.
func (c *Collector) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// ObservePoll records a poll outcome and the interval that follows it.
func (c *Collector) ObservePoll(err error, next time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.polls.WithLabelValues(status).Inc()
	c.pollInterval.Set(next.Seconds())
}
