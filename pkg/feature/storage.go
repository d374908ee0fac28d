package feature

import "context"

// Storage is the read side the engine consumes, plus the analytics sink.
//
// GetFlag returns ErrFlagNotFound and GetOverride returns
// ErrOverrideNotFound when nothing matches. An empty orgID selects global
// flags; implementations may fall back to a global flag when no
// organization-scoped one exists.
type Storage interface {
	GetFlag(ctx context.Context, key, orgID string) (*Flag, error)
	GetRulesForFlag(ctx context.Context, flagID string) ([]Rule, error)
	GetOverride(ctx context.Context, flagID, userID string) (*Override, error)
	ListFlags(ctx context.Context, orgID string, filter ListFilter) ([]*Flag, error)
	TrackEvaluation(ctx context.Context, record EvaluationRecord) error
}

// BatchTracker is implemented by storages that can write analytics in bulk.
// The tracker prefers it over per-record TrackEvaluation calls.
type BatchTracker interface {
	TrackEvaluations(ctx context.Context, records []EvaluationRecord) error
}
