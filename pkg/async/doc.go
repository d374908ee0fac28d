// Package async provides generic helpers for fan-out work.
//
// Async starts a function in its own goroutine and returns a *Future that
// Await blocks on. Settle joins a
// group of futures with an all-settled barrier: every outcome is collected
// and a failing task never cancels its siblings. The feature engine uses it
// for batch evaluation.
//
//	futures := make([]*async.Future[feature.EvaluationResult], 0, len(keys))
//	for _, key := range keys {
//		futures = append(futures, async.Async(ctx, key, evaluate))
//	}
//	for i, o := range async.Settle(futures...) {
//		// o.Value, o.Err for keys[i]
//	}
//
// Panics inside a task are recovered and surface as errors wrapping
// ErrPanicked.
package async
