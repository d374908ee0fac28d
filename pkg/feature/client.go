package feature

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/async"
	"github.com/dmitrymomot/featurekit/pkg/cache"
	"github.com/dmitrymomot/featurekit/pkg/fingerprint"
	"github.com/dmitrymomot/featurekit/pkg/logger"
	"github.com/dmitrymomot/featurekit/pkg/override"
	"github.com/dmitrymomot/featurekit/pkg/poller"
	"github.com/dmitrymomot/featurekit/pkg/sanitizer"
)

const flagBatchKey = "flags"

// Client owns the evaluation flow: local overrides first, then the result
// cache, then the engine. A poller keeps the flag batch fresh.
type Client struct {
	storage   Storage
	engine    *Engine
	results   *cache.Cache[EvaluationResult]
	flags     *cache.Cache[map[string]*Flag]
	overrides *override.Manager
	poller    *poller.Poller
	tracker   *Tracker
	sanitizer *sanitizer.Sanitizer
	metrics   MetricsRecorder
	logger    *slog.Logger

	organizationID string
	filter         ListFilter

	mu        sync.Mutex
	batchHash string
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewClient wires a client around storage.
func NewClient(storage Storage, opts ...Option) *Client {
	if storage == nil {
		panic("feature: client storage cannot be nil")
	}

	o := clientOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	c := &Client{
		storage:        storage,
		metrics:        o.metrics,
		logger:         log.With(logger.Component("client")),
		organizationID: o.organizationID,
		filter:         o.filter,
	}

	engineOpts := []EngineOption{
		WithEngineLogger(log),
		WithEngineMetrics(o.metrics),
		WithEngineClock(o.now),
	}
	if !o.trackingDisabled {
		to := o.trackerOpts
		if to.Logger == nil {
			to.Logger = log
		}
		c.tracker = NewTracker(storage, to)
		engineOpts = append(engineOpts, WithEngineTracker(c.tracker))
	}
	c.engine = NewEngine(storage, engineOpts...)

	c.results = cache.New[EvaluationResult](append([]cache.Option{cache.WithLogger(log)}, o.cacheOpts...)...)
	c.flags = cache.New[map[string]*Flag](append([]cache.Option{cache.WithLogger(log)}, o.flagCacheOpts...)...)
	c.overrides = override.New(append([]override.Option{override.WithLogger(log)}, o.overrideOpts...)...)
	c.sanitizer = sanitizer.New(append([]sanitizer.Option{sanitizer.WithLogger(log)}, o.sanitizerOpts...)...)
	c.poller = poller.New(c.Refresh, append([]poller.Option{poller.WithLogger(log)}, o.pollerOpts...)...)

	return c
}

// Engine returns the underlying evaluation engine.
func (c *Client) Engine() *Engine { return c.engine }

// Cache returns the evaluation result cache.
func (c *Client) Cache() *cache.Cache[EvaluationResult] { return c.results }

// Overrides returns the local override manager.
func (c *Client) Overrides() *override.Manager { return c.overrides }

// Poller returns the background refresh poller.
func (c *Client) Poller() *poller.Poller { return c.poller }

// Tracker returns the analytics tracker, or nil when tracking is disabled.
func (c *Client) Tracker() *Tracker { return c.tracker }

// Evaluate resolves key for evalCtx. def is returned for missing flags and
// failed evaluations.
func (c *Client) Evaluate(ctx context.Context, key string, evalCtx EvaluationContext, def any) EvaluationResult {
	if c.closed.Load() {
		return EvaluationResult{
			FlagKey:   key,
			Value:     def,
			Reason:    ReasonError,
			ErrorCode: ErrorCodeEvaluation,
			Err:       ErrClientClosed,
		}
	}

	if v, ok := c.overrides.Get(key); ok {
		res := EvaluationResult{
			FlagKey:  key,
			Value:    v,
			Reason:   ReasonOverride,
			Metadata: Metadata{Source: SourceLocal},
		}
		c.engine.observe(evalCtx, res, 0)
		return res
	}

	cacheKey := cache.Key(key, fingerprint.Generate(evalCtx.EffectiveUserID(), evalCtx.OrganizationID, evalCtx.Attributes))
	if res, ok := c.results.Get(cacheKey); ok {
		c.observeCache(true)
		return res
	}
	c.observeCache(false)

	var res EvaluationResult
	if flag, ok := c.batchFlag(key, evalCtx.OrganizationID); ok {
		res = c.engine.Evaluate(ctx, flag, evalCtx, WithDefault(def))
	} else {
		res = c.engine.EvaluateKey(ctx, key, evalCtx, WithDefault(def))
	}

	switch res.Reason {
	case ReasonError, ReasonNotFound:
		// Errors are transient and not_found carries the caller default.
	default:
		c.results.Set(cacheKey, res, 0)
	}
	return res
}

// EvaluateBatch resolves keys concurrently with nil defaults.
func (c *Client) EvaluateBatch(ctx context.Context, keys []string, evalCtx EvaluationContext) map[string]EvaluationResult {
	futures := make([]*async.Future[EvaluationResult], len(keys))
	for i, key := range keys {
		futures[i] = async.Async(ctx, key, func(ctx context.Context, key string) (EvaluationResult, error) {
			return c.Evaluate(ctx, key, evalCtx, nil), nil
		})
	}

	results := make(map[string]EvaluationResult, len(keys))
	for i, outcome := range async.Settle(futures...) {
		if outcome.Err != nil {
			results[keys[i]] = EvaluationResult{
				FlagKey:   keys[i],
				Reason:    ReasonError,
				ErrorCode: ErrorCodeEvaluation,
				Err:       outcome.Err,
			}
			continue
		}
		results[keys[i]] = outcome.Value
	}
	return results
}

// TransportContext returns evalCtx reduced for sending to a remote service.
func (c *Client) TransportContext(evalCtx EvaluationContext, target sanitizer.Target) (map[string]any, bool) {
	return c.sanitizer.SanitizeForTransport(evalCtx.Map(), target)
}

// SetSession switches the session. A changed id clears cached results and
// forces a refresh.
func (c *Client) SetSession(ctx context.Context, sessionID string) error {
	if !c.results.InvalidateOnSessionChange(sessionID) {
		return nil
	}
	c.flags.InvalidateOnSessionChange(sessionID)
	c.logger.InfoContext(ctx, "session changed, cache invalidated")
	return c.poller.RefreshNow(ctx)
}

// Refresh reloads the flag batch from storage. Cached results are dropped
// when the batch differs from the previous one.
func (c *Client) Refresh(ctx context.Context) error {
	list, err := c.storage.ListFlags(ctx, c.organizationID, c.filter)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}

	batch := make(map[string]*Flag, len(list))
	for _, f := range list {
		batch[f.Key] = f
	}
	hash := fingerprint.Hash(list)

	c.mu.Lock()
	changed := c.batchHash != "" && c.batchHash != hash
	c.batchHash = hash
	c.mu.Unlock()

	c.flags.Set(flagBatchKey, batch, 0)

	if changed {
		c.results.Clear()
		c.logger.InfoContext(ctx, "flag definitions changed, result cache cleared",
			logger.Count("flags", len(list)),
		)
	}
	return nil
}

// Start loads the flag batch and launches background polling.
// A failed initial load is logged and retried by the poller.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.poller.RefreshNow(ctx); err != nil {
		c.logger.WarnContext(ctx, "initial flag refresh failed", logger.Error(err))
	}
	return c.poller.Start(ctx)
}

// Close stops background work and flushes analytics.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.poller.Stop()

		errs := []error{
			c.overrides.Close(),
			c.results.Close(),
			c.flags.Close(),
		}
		if c.tracker != nil {
			errs = append(errs, c.tracker.Close(ctx))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// batchFlag finds key in the polled batch. Flags of other organizations
// are never served from it.
func (c *Client) batchFlag(key, orgID string) (*Flag, bool) {
	if orgID != c.organizationID {
		return nil, false
	}
	batch, ok := c.flags.Get(flagBatchKey)
	if !ok {
		return nil, false
	}
	f, ok := batch[key]
	return f, ok
}

func (c *Client) observeCache(hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveCacheLookup(hit)
	}
}
