package cache

import "errors"

var (
	// ErrQuotaExceeded signals that a Persister refused a write for lack of space.
	// Persisters may return it (or an error wrapping it) to trigger eviction and retry.
	ErrQuotaExceeded = errors.New("cache: persistent storage quota exceeded")

	ErrDecodeEntry = errors.New("cache: failed to decode persisted entry")
	ErrEncodeEntry = errors.New("cache: failed to encode entry")
)
