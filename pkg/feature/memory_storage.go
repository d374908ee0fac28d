package feature

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxTrackedRecords bounds the analytics kept by MemoryStorage.
const maxTrackedRecords = 10000

// MemoryStorage is an in-memory Storage.
// It's useful for testing and simple applications.
type MemoryStorage struct {
	mu          sync.RWMutex
	flags       map[string]*Flag // by scope key, see scopeKey
	rules       map[string][]Rule
	overrides   map[string]Override
	evaluations []EvaluationRecord
	now         func() time.Time
}

// NewMemoryStorage creates a storage seeded with initialFlags.
func NewMemoryStorage(initialFlags ...*Flag) (*MemoryStorage, error) {
	s := &MemoryStorage{
		flags:     make(map[string]*Flag),
		rules:     make(map[string][]Rule),
		overrides: make(map[string]Override),
		now:       time.Now,
	}
	for _, flag := range initialFlags {
		if flag == nil {
			continue
		}
		if err := s.CreateFlag(context.Background(), flag); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func scopeKey(orgID, key string) string {
	return orgID + "/" + key
}

func overrideKey(flagID, userID string) string {
	return flagID + "/" + userID
}

// GetFlag returns the organization-scoped flag, falling back to the global one.
func (s *MemoryStorage) GetFlag(ctx context.Context, key, orgID string) (*Flag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if orgID != "" {
		if f, ok := s.flags[scopeKey(orgID, key)]; ok {
			return f.clone(), nil
		}
	}
	if f, ok := s.flags[scopeKey("", key)]; ok {
		return f.clone(), nil
	}
	return nil, ErrFlagNotFound
}

// GetRulesForFlag returns the rules registered with SetRules.
func (s *MemoryStorage) GetRulesForFlag(ctx context.Context, flagID string) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules[flagID]), nil
}

// GetOverride returns the admin override for the user.
func (s *MemoryStorage) GetOverride(ctx context.Context, flagID, userID string) (*Override, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[overrideKey(flagID, userID)]
	if !ok {
		return nil, ErrOverrideNotFound
	}
	return &o, nil
}

// ListFlags returns the flags visible to orgID: its own flags plus global
// flags not shadowed by an organization flag with the same key. Results
// are sorted by key.
func (s *MemoryStorage) ListFlags(ctx context.Context, orgID string, filter ListFilter) ([]*Flag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := make(map[string]*Flag)
	for _, f := range s.flags {
		switch f.OrganizationID {
		case "":
			if _, shadowed := visible[f.Key]; !shadowed {
				visible[f.Key] = f
			}
		case orgID:
			visible[f.Key] = f
		}
	}

	result := make([]*Flag, 0, len(visible))
	for _, f := range visible {
		if filter.Matches(f) {
			result = append(result, f.clone())
		}
	}
	slices.SortFunc(result, func(a, b *Flag) int { return cmp.Compare(a.Key, b.Key) })
	return result, nil
}

// TrackEvaluation records an analytics event.
func (s *MemoryStorage) TrackEvaluation(ctx context.Context, record EvaluationRecord) error {
	return s.TrackEvaluations(ctx, []EvaluationRecord{record})
}

// TrackEvaluations records analytics events in bulk.
func (s *MemoryStorage) TrackEvaluations(ctx context.Context, records []EvaluationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, records...)
	if over := len(s.evaluations) - maxTrackedRecords; over > 0 {
		s.evaluations = slices.Delete(s.evaluations, 0, over)
	}
	return nil
}

// Evaluations returns a copy of the tracked analytics events.
func (s *MemoryStorage) Evaluations() []EvaluationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.evaluations)
}

// CreateFlag stores a new flag. A missing ID is generated.
func (s *MemoryStorage) CreateFlag(ctx context.Context, flag *Flag) error {
	if flag == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag cannot be nil"))
	}
	if err := flag.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := scopeKey(flag.OrganizationID, flag.Key)
	if _, exists := s.flags[k]; exists {
		return ErrFlagExists
	}

	f := flag.clone()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := s.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	s.flags[k] = f

	flag.ID, flag.CreatedAt, flag.UpdatedAt = f.ID, f.CreatedAt, f.UpdatedAt
	return nil
}

// UpdateFlag replaces an existing flag, keeping its ID and creation time.
func (s *MemoryStorage) UpdateFlag(ctx context.Context, flag *Flag) error {
	if flag == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag cannot be nil"))
	}
	if err := flag.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := scopeKey(flag.OrganizationID, flag.Key)
	existing, ok := s.flags[k]
	if !ok {
		return ErrFlagNotFound
	}

	f := flag.clone()
	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = s.now()
	s.flags[k] = f

	flag.ID, flag.CreatedAt, flag.UpdatedAt = f.ID, f.CreatedAt, f.UpdatedAt
	return nil
}

// DeleteFlag removes a flag together with its rules and overrides.
func (s *MemoryStorage) DeleteFlag(ctx context.Context, key, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scopeKey(orgID, key)
	f, ok := s.flags[k]
	if !ok {
		return ErrFlagNotFound
	}
	delete(s.flags, k)
	delete(s.rules, f.ID)
	for ok, o := range s.overrides {
		if o.FlagID == f.ID {
			delete(s.overrides, ok)
		}
	}
	return nil
}

// SetRules replaces the rules of a flag.
func (s *MemoryStorage) SetRules(ctx context.Context, flagID string, rules []Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := slices.Clone(rules)
	for i := range cp {
		cp[i].FlagID = flagID
		if cp[i].ID == "" {
			cp[i].ID = uuid.NewString()
		}
	}
	s.rules[flagID] = cp
	return nil
}

// SetOverride stores an admin override.
func (s *MemoryStorage) SetOverride(ctx context.Context, o Override) error {
	if o.FlagID == "" || o.UserID == "" {
		return errors.Join(ErrInvalidFlag, errors.New("override needs flag and user ids"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[overrideKey(o.FlagID, o.UserID)] = o
	return nil
}

// DeleteOverride removes an admin override.
func (s *MemoryStorage) DeleteOverride(ctx context.Context, flagID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := overrideKey(flagID, userID)
	if _, ok := s.overrides[k]; !ok {
		return ErrOverrideNotFound
	}
	delete(s.overrides, k)
	return nil
}

// Close releases any resources. For the memory storage, this is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

// Matches reports whether f passes the filter.
func (lf ListFilter) Matches(f *Flag) bool {
	if lf.EnabledOnly && !f.Enabled {
		return false
	}
	if len(lf.Keys) > 0 && !slices.Contains(lf.Keys, f.Key) {
		return false
	}
	if len(lf.Tags) > 0 && !slices.ContainsFunc(lf.Tags, func(t string) bool { return slices.Contains(f.Tags, t) }) {
		return false
	}
	return true
}
