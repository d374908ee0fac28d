// Package poller runs a background refresh task with jittered exponential
// backoff.
//
// The feature client uses it to keep its flag batch fresh:
//
//	p := poller.New(client.Refresh,
//		poller.WithInterval(30*time.Second),
//		poller.WithOnError(func(err error) { log.Warn("refresh failed", "error", err) }),
//	)
//	if err := p.Start(ctx); err != nil {
//		return err
//	}
//	defer p.Stop()
//
// Every cycle waits the current interval stretched by a random jitter in
// [0, 0.25), which keeps many instances from polling in lockstep. A failed
// task doubles the interval, capped at the smaller of ten times the base
// and the configured maximum. Task errors go to the OnError callback and
// never stop the loop.
//
// RefreshNow cancels the pending wait and runs the task at once, for
// example after a session change.
package poller
