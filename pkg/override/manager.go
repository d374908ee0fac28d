package override

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/environment"
	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// BlobStore persists the override map as a single blob.
// Get returns nil, nil when nothing is stored. redis.Storage satisfies it.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// StoredOverride is a local override value.
type StoredOverride struct {
	Value       any                     `json:"value"`
	ExpiresAt   time.Time               `json:"expires_at,omitzero"`
	Environment environment.Environment `json:"environment"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Expired reports whether the override has a deadline that passed.
func (o StoredOverride) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}

// Manager holds developer overrides keyed by flag key.
//
// Overrides are refused in production unless explicitly allowed, and they
// expire after their TTL. Expiry is checked on every read and by a
// periodic sweep.
type Manager struct {
	mu        sync.Mutex
	overrides map[string]StoredOverride

	env               environment.Environment
	allowInProduction bool
	ttl               time.Duration
	sweepInterval     time.Duration
	store             BlobStore
	storageKey        string
	now               func() time.Time
	logger            *slog.Logger

	saveMu sync.Mutex

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// New creates a Manager, loads persisted overrides and starts the sweep.
func New(opts ...Option) *Manager {
	m := &Manager{
		overrides:     make(map[string]StoredOverride),
		sweepInterval: DefaultSweepInterval,
		storageKey:    DefaultStorageKey,
		now:           time.Now,
		logger:        slog.Default(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.env == "" {
		m.env = environment.Detect("")
	}
	m.logger = m.logger.With(logger.Component("override"), logger.Environment(m.env.String()))

	if m.store != nil {
		if err := m.load(); err != nil {
			m.logger.Warn("persisted overrides ignored", logger.Error(err))
		}
	}

	if m.sweepInterval > 0 {
		m.ticker = time.NewTicker(m.sweepInterval)
		go m.sweepLoop()
	}

	return m
}

// Environment returns the environment the manager operates in.
func (m *Manager) Environment() environment.Environment {
	return m.env
}

// Enabled reports whether overrides can be created and served.
func (m *Manager) Enabled() bool {
	return !m.env.IsProduction() || m.allowInProduction
}

// Set stores an override with the configured TTL.
// It returns false when overrides are blocked in this environment.
func (m *Manager) Set(key string, value any) bool {
	return m.SetWithTTL(key, value, m.ttl)
}

// SetWithTTL stores an override that expires after ttl. Zero ttl never expires.
func (m *Manager) SetWithTTL(key string, value any, ttl time.Duration) bool {
	if !m.Enabled() {
		m.logger.Warn("override refused in production", logger.FlagKey(key))
		return false
	}

	now := m.now()
	o := StoredOverride{
		Value:       value,
		Environment: m.env,
		CreatedAt:   now,
	}
	if ttl > 0 {
		o.ExpiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	m.overrides[key] = o
	m.mu.Unlock()

	m.save()
	return true
}

// Get returns the override value for key.
// Expired overrides are removed and reported as absent. Overrides created
// in another environment are still returned, with a warning.
func (m *Manager) Get(key string) (any, bool) {
	if !m.Enabled() {
		return nil, false
	}

	m.mu.Lock()
	o, ok := m.overrides[key]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	if o.Expired(m.now()) {
		delete(m.overrides, key)
		m.mu.Unlock()
		m.save()
		return nil, false
	}
	m.mu.Unlock()

	if o.Environment != m.env {
		m.logger.Warn("override created in a different environment",
			logger.FlagKey(key),
			slog.String("created_in", o.Environment.String()),
		)
	}
	return o.Value, true
}

// Has reports whether an active override exists for key.
func (m *Manager) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes the override for key and reports whether it existed.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	_, ok := m.overrides[key]
	delete(m.overrides, key)
	m.mu.Unlock()

	if ok {
		m.save()
	}
	return ok
}

// Clear removes every override.
func (m *Manager) Clear() {
	m.mu.Lock()
	clear(m.overrides)
	m.mu.Unlock()
	m.save()
}

// GetAll returns the values of every active override.
func (m *Manager) GetAll() map[string]any {
	if !m.Enabled() {
		return map[string]any{}
	}
	m.DeleteExpired()

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.overrides))
	for k, o := range m.overrides {
		out[k] = o.Value
	}
	return out
}

// DeleteExpired removes expired overrides and returns how many were removed.
func (m *Manager) DeleteExpired() int {
	now := m.now()

	m.mu.Lock()
	n := 0
	for k, o := range m.overrides {
		if o.Expired(now) {
			delete(m.overrides, k)
			n++
		}
	}
	m.mu.Unlock()

	if n > 0 {
		m.save()
	}
	return n
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (m *Manager) Close() error {
	m.once.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
	})
	return nil
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.ticker.C:
			if n := m.DeleteExpired(); n > 0 {
				m.logger.Debug("expired overrides swept", logger.Count("count", n))
			}
		case <-m.done:
			return
		}
	}
}

// save mirrors the map into the store. Snapshots are taken under saveMu so
// writes reach the store in mutation order.
func (m *Manager) save() {
	if m.store == nil {
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	snapshot := maps.Clone(m.overrides)
	m.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		m.logger.Warn("overrides not persisted", logger.Error(errors.Join(ErrSaveFailed, err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Set(ctx, m.storageKey, data, 0); err != nil {
		m.logger.Warn("overrides not persisted", logger.Error(errors.Join(ErrSaveFailed, err)))
	}
}

// load reads the persisted blob, keeping only entries that have not expired.
func (m *Manager) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	data, err := m.store.Get(ctx, m.storageKey)
	if err != nil {
		return errors.Join(ErrLoadFailed, err)
	}
	if len(data) == 0 {
		return nil
	}

	var stored map[string]StoredOverride
	if err := json.Unmarshal(data, &stored); err != nil {
		return errors.Join(ErrLoadFailed, err)
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, o := range stored {
		if !o.Expired(now) {
			m.overrides[k] = o
		}
	}
	return nil
}
