package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// Persister is a best-effort key/value backend for cache entries.
// Get returns nil, nil for a missing key.
// redis.Storage satisfies this interface.
type Persister interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type persistedEntry[V any] struct {
	Value     V             `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
	SessionID string        `json:"session_id,omitempty"`
}

// persistence tracks which keys were written, oldest at the back, so a
// quota error can free space by removing the oldest ones first.
type persistence[V any] struct {
	backend    Persister
	timeout    time.Duration
	evictBatch int
	isQuota    func(error) bool
	logger     *slog.Logger

	mu      sync.Mutex
	written *list.List
	index   map[string]*list.Element

	errors         uint64
	quotaEvictions uint64
}

func newPersistence[V any](o options, l *slog.Logger) *persistence[V] {
	return &persistence[V]{
		backend:    o.persister,
		timeout:    o.persistTimeout,
		evictBatch: o.quotaEvictBatch,
		isQuota:    o.isQuota,
		logger:     l,
		written:    list.New(),
		index:      make(map[string]*list.Element),
	}
}

func (p *persistence[V]) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}

func (p *persistence[V]) load(key string) (*entry[V], bool) {
	ctx, cancel := p.context()
	defer cancel()

	data, err := p.backend.Get(ctx, key)
	if err != nil {
		p.fail("persisted read failed", key, err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var pe persistedEntry[V]
	if err := json.Unmarshal(data, &pe); err != nil {
		p.fail("persisted entry is corrupt", key, errors.Join(ErrDecodeEntry, err))
		return nil, false
	}
	return &entry[V]{
		key:       key,
		value:     pe.Value,
		createdAt: pe.CreatedAt,
		ttl:       pe.TTL,
		sessionID: pe.SessionID,
	}, true
}

// store never reports failure to the caller. A quota error evicts the
// oldest persisted keys and retries once; if that fails too the entry
// stays memory-only.
func (p *persistence[V]) store(e *entry[V]) {
	data, err := json.Marshal(persistedEntry[V]{
		Value:     e.value,
		CreatedAt: e.createdAt,
		TTL:       e.ttl,
		SessionID: e.sessionID,
	})
	if err != nil {
		p.fail("entry cannot be persisted", e.key, errors.Join(ErrEncodeEntry, err))
		return
	}

	ctx, cancel := p.context()
	defer cancel()

	err = p.backend.Set(ctx, e.key, data, e.ttl)
	if err != nil && p.isQuota(err) {
		evicted := p.evictOldest(ctx, p.evictBatch)
		p.logger.Warn("persistent cache quota exceeded, evicted oldest entries",
			logger.CacheKey(e.key),
			logger.Count("evicted", evicted),
		)
		err = p.backend.Set(ctx, e.key, data, e.ttl)
		if err != nil {
			p.fail("persist retry failed, keeping entry in memory only", e.key, err)
			return
		}
	}
	if err != nil {
		p.fail("persisted write failed", e.key, err)
		return
	}

	p.mu.Lock()
	if elem, ok := p.index[e.key]; ok {
		p.written.MoveToFront(elem)
	} else {
		p.index[e.key] = p.written.PushFront(e.key)
	}
	p.mu.Unlock()
}

func (p *persistence[V]) evictOldest(ctx context.Context, n int) int {
	p.mu.Lock()
	keys := make([]string, 0, n)
	for elem := p.written.Back(); elem != nil && len(keys) < n; elem = p.written.Back() {
		key := elem.Value.(string)
		p.written.Remove(elem)
		delete(p.index, key)
		keys = append(keys, key)
	}
	p.quotaEvictions += uint64(len(keys))
	p.mu.Unlock()

	for _, key := range keys {
		if err := p.backend.Delete(ctx, key); err != nil {
			p.fail("persisted delete failed", key, err)
		}
	}
	return len(keys)
}

func (p *persistence[V]) delete(key string) {
	p.mu.Lock()
	if elem, ok := p.index[key]; ok {
		p.written.Remove(elem)
		delete(p.index, key)
	}
	p.mu.Unlock()

	ctx, cancel := p.context()
	defer cancel()
	if err := p.backend.Delete(ctx, key); err != nil {
		p.fail("persisted delete failed", key, err)
	}
}

// deleteAll removes every key this cache has written.
func (p *persistence[V]) deleteAll() {
	p.mu.Lock()
	keys := make([]string, 0, len(p.index))
	for key := range p.index {
		keys = append(keys, key)
	}
	p.written.Init()
	p.index = make(map[string]*list.Element)
	p.mu.Unlock()

	ctx, cancel := p.context()
	defer cancel()
	for _, key := range keys {
		if err := p.backend.Delete(ctx, key); err != nil {
			p.fail("persisted delete failed", key, err)
		}
	}
}

func (p *persistence[V]) counters() (errs, quotaEvictions uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors, p.quotaEvictions
}

func (p *persistence[V]) fail(msg, key string, err error) {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
	p.logger.Warn(msg, logger.CacheKey(key), logger.Error(err))
}
