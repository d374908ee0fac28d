// Package metrics exports feature flag telemetry to Prometheus.
//
//	col, err := metrics.New(prometheus.DefaultRegisterer)
//	if err != nil {
//		return err
//	}
//	client := feature.NewClient(storage,
//		feature.WithMetrics(col),
//		feature.WithPollerOptions(poller.WithObserver(col.ObservePoll)),
//	)
//	_ = col.RegisterCache(client.Cache().StatsSnapshot)
//	_ = col.RegisterTracker(client.Tracker())
//
// Cache and tracker counters are read at scrape time.
package metrics
