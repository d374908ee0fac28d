package override

import "errors"

var (
	ErrLoadFailed = errors.New("override: failed to load persisted overrides")
	ErrSaveFailed = errors.New("override: failed to persist overrides")
)
