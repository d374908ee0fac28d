package feature

import "errors"

var (
	// ErrFlagNotFound is returned by storage when a flag does not exist.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrOverrideNotFound is returned by storage when no admin override exists.
	ErrOverrideNotFound = errors.New("feature override not found")

	// ErrInvalidFlag indicates that the provided flag parameters are invalid.
	ErrInvalidFlag     = errors.New("invalid feature flag parameters")
	ErrEmptyFlagKey    = errors.Join(ErrInvalidFlag, errors.New("flag key cannot be empty"))
	ErrInvalidRollout  = errors.Join(ErrInvalidFlag, errors.New("rollout percentage must be between 0 and 100"))
	ErrInvalidFlagType = errors.Join(ErrInvalidFlag, errors.New("unknown flag type"))
	ErrFlagExists      = errors.Join(ErrInvalidFlag, errors.New("flag already exists"))

	// ErrStorage wraps failures reported by a Storage implementation.
	ErrStorage = errors.New("feature storage failure")

	// ErrEvaluationPanic wraps a panic recovered during evaluation.
	ErrEvaluationPanic = errors.New("feature evaluation panicked")

	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("feature client closed")
)
