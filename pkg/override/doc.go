// Package override manages local developer overrides for feature flags.
//
// An override forces the value of one flag for this process, bypassing
// rules, rollout and the result cache. It is meant for development and QA,
// so the manager refuses to create or serve overrides in production unless
// WithAllowInProduction is set. The environment comes from
// environment.Detect: an explicit setting, then process variables, then a
// hostname heuristic.
//
//	m := override.New(override.WithTTL(time.Hour))
//	defer m.Close()
//
//	m.Set("new-checkout", true)
//	if v, ok := m.Get("new-checkout"); ok {
//		// use v
//	}
//
// Each override moves from active to expired when its TTL passes. Expiry is
// detected on read and by a background sweep (every 60s by default). Close
// stops the sweep.
//
// With WithStore the whole map is written to a BlobStore on every mutation
// and reloaded at startup, skipping entries that expired in the meantime.
package override
