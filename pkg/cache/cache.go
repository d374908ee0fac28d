package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/logger"
)

type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	ttl       time.Duration
	sessionID string
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Cache is a thread-safe TTL + LRU cache bound to an active session.
//
// An entry is returned only while it is younger than its TTL and belongs to
// the active session. Stale entries are evicted on the read that finds them.
type Cache[V any] struct {
	mu        sync.Mutex
	items     map[string]*list.Element
	order     *list.List // front is most recently used
	sessionID string
	stats     Stats

	maxEntries int
	ttl        time.Duration
	filter     keyFilter
	now        func() time.Time
	logger     *slog.Logger

	persist *persistence[V]

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// New creates a cache.
func New[V any](opts ...Option) *Cache[V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		sessionID:  o.sessionID,
		maxEntries: o.maxEntries,
		ttl:        o.ttl,
		filter:     keyFilter{include: o.include, exclude: o.exclude},
		now:        o.now,
		logger:     o.logger.With(logger.Component("cache")),
		done:       make(chan struct{}),
	}

	if bad := invalidPatterns(append(append([]string{}, o.include...), o.exclude...)); len(bad) > 0 {
		c.logger.Warn("ignoring invalid key patterns", slog.Any("patterns", bad))
	}

	if o.persister != nil {
		c.persist = newPersistence[V](o, c.logger)
	}

	if o.cleanupInterval > 0 {
		c.ticker = time.NewTicker(o.cleanupInterval)
		go c.cleanupLoop()
	}

	return c
}

// Cacheable reports whether key passes the include/exclude filters.
func (c *Cache[V]) Cacheable(key string) bool {
	return c.filter.allows(key)
}

// Get returns the value stored under key.
// Expired and session-mismatched entries are evicted and reported as a miss.
// On a memory miss the persister, when configured, is consulted.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if !c.filter.allows(key) {
		c.mu.Lock()
		c.stats.Bypassed++
		c.mu.Unlock()
		return zero, false
	}

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		if c.validLocked(e) {
			c.order.MoveToFront(elem)
			c.stats.Hits++
			c.mu.Unlock()
			return e.value, true
		}
		c.removeLocked(elem)
		c.stats.Expirations++
		c.stats.Misses++
		c.mu.Unlock()
		c.persistDelete(key)
		return zero, false
	}
	session := c.sessionID
	c.mu.Unlock()

	if c.persist == nil {
		c.recordMiss()
		return zero, false
	}

	e, ok := c.persist.load(key)
	if !ok {
		c.recordMiss()
		return zero, false
	}

	c.mu.Lock()
	// A Set may have landed while the lock was released; it wins over the
	// older persisted copy.
	if elem, ok := c.items[key]; ok {
		cur := elem.Value.(*entry[V])
		if c.validLocked(cur) {
			c.order.MoveToFront(elem)
			c.stats.Hits++
			c.mu.Unlock()
			return cur.value, true
		}
	}
	if e.sessionID != session || c.sessionID != session || e.expired(c.now()) {
		c.stats.Misses++
		c.mu.Unlock()
		c.persistDelete(key)
		return zero, false
	}
	c.insertLocked(e)
	c.stats.Hits++
	c.stats.PersistHits++
	c.mu.Unlock()
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl uses the default.
// Keys rejected by the include/exclude filters are ignored.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if !c.filter.allows(key) {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	e := &entry[V]{
		key:       key,
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
		sessionID: c.sessionID,
	}
	c.insertLocked(e)
	c.stats.Sets++
	c.mu.Unlock()

	if c.persist != nil {
		c.persist.store(e)
	}
}

// Delete removes key from memory and from the persister.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
	c.mu.Unlock()
	c.persistDelete(key)
}

// InvalidateOnSessionChange switches the active session.
// When id differs from the current session every entry is dropped, since
// cached decisions may be specific to the previous user. It reports whether
// a change happened.
func (c *Cache[V]) InvalidateOnSessionChange(id string) bool {
	c.mu.Lock()
	if id == c.sessionID {
		c.mu.Unlock()
		return false
	}
	prev := c.sessionID
	c.sessionID = id
	dropped := c.clearLocked()
	c.mu.Unlock()

	if c.persist != nil {
		c.persist.deleteAll()
	}
	c.logger.Debug("session changed, cache cleared",
		slog.String("previous_session", prev),
		slog.String("session", id),
		logger.Count("dropped", dropped),
	)
	return true
}

// Clear drops every entry, including persisted ones.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()

	if c.persist != nil {
		c.persist.deleteAll()
	}
}

// Len returns the number of in-memory entries, stale ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// SessionID returns the active session id.
func (c *Cache[V]) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// StatsSnapshot returns a copy of the counters.
func (c *Cache[V]) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	if c.persist != nil {
		s.PersistErrors, s.QuotaEvictions = c.persist.counters()
	}
	return s
}

// DeleteExpired evicts every stale entry and returns how many were removed.
func (c *Cache[V]) DeleteExpired() int {
	c.mu.Lock()
	var stale []string
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		e := elem.Value.(*entry[V])
		if !c.validLocked(e) {
			stale = append(stale, e.key)
			c.removeLocked(elem)
			c.stats.Expirations++
		}
		elem = prev
	}
	c.mu.Unlock()

	for _, key := range stale {
		c.persistDelete(key)
	}
	return len(stale)
}

// Close stops the cleanup goroutine. The cache stays usable.
func (c *Cache[V]) Close() error {
	c.once.Do(func() {
		if c.ticker != nil {
			c.ticker.Stop()
		}
		close(c.done)
	})
	return nil
}

func (c *Cache[V]) cleanupLoop() {
	for {
		select {
		case <-c.ticker.C:
			if n := c.DeleteExpired(); n > 0 {
				c.logger.Debug("expired entries swept", logger.Count("count", n))
			}
		case <-c.done:
			return
		}
	}
}

func (c *Cache[V]) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *Cache[V]) persistDelete(key string) {
	if c.persist != nil {
		c.persist.delete(key)
	}
}

// Must be called with lock held.
func (c *Cache[V]) validLocked(e *entry[V]) bool {
	return e.sessionID == c.sessionID && !e.expired(c.now())
}

// Must be called with lock held.
func (c *Cache[V]) insertLocked(e *entry[V]) {
	if elem, ok := c.items[e.key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.items[e.key] = c.order.PushFront(e)
	for c.order.Len() > c.maxEntries {
		c.removeLocked(c.order.Back())
		c.stats.Evictions++
	}
}

// Must be called with lock held.
func (c *Cache[V]) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}

// Must be called with lock held.
func (c *Cache[V]) clearLocked() int {
	n := c.order.Len()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	return n
}
