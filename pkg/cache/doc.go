// Package cache provides a generic, thread-safe result cache combining
// LRU eviction, per-entry TTL and session binding.
//
// Entries are stored with the session that was active when they were
// written. A read returns an entry only if it is younger than its TTL and
// its session is still the active one; anything else is evicted and
// reported as a miss. Switching the session with InvalidateOnSessionChange
// clears the whole cache, because cached flag decisions may encode
// user-specific targeting.
//
//	results := cache.New[feature.EvaluationResult](
//		cache.WithMaxEntries(500),
//		cache.WithTTL(time.Minute),
//		cache.WithExclude("kill-*"),
//	)
//	results.Set(cache.Key("new-checkout", fp), res, 0)
//	res, ok := results.Get(cache.Key("new-checkout", fp))
//
// # Key filters
//
// WithInclude and WithExclude take path.Match glob patterns matched against
// the full key. Keys that do not pass are never stored and always miss,
// which keeps high-churn flags such as kill switches fresh.
//
// # Persistence
//
// WithPersister mirrors writes into a Persister such as redis.Storage.
// Persistence is best-effort and never surfaces errors: when the backend
// reports a quota error the oldest persisted entries are removed and the
// write is retried once, after which the entry stays memory-only. A memory
// miss loads through the persister and re-validates the loaded entry.
//
// # Capacity Management
//
// When a new entry pushes the cache past its capacity, the least recently
// used entry is dropped. Reads and writes both count as use.
package cache
