// Package redis connects to Redis and exposes a small key/value Storage.
//
// Storage satisfies both cache.Persister and override.BlobStore, so cached
// evaluation results and local overrides can survive process restarts:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redis.NewStorageWithConfig(client, cfg)
//
//	results := cache.New[feature.EvaluationResult](
//		cache.WithPersister(store),
//		cache.WithQuotaClassifier(redis.IsQuotaExceeded),
//	)
//
// Writes refused with an OOM reply (maxmemory reached) are returned as
// ErrQuotaExceeded, which the cache answers by evicting its oldest persisted
// entries before retrying.
package redis
