package feature

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/async"
	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// MetricsRecorder receives evaluation telemetry. pkg/metrics provides a
// Prometheus implementation.
type MetricsRecorder interface {
	ObserveEvaluation(flagKey string, reason Reason, source Source, d time.Duration)
	ObserveCacheLookup(hit bool)
}

// Engine evaluates flags against an evaluation context.
// It never returns errors: failures are reported through the result reason.
type Engine struct {
	storage Storage
	tracker *Tracker
	metrics MetricsRecorder
	matcher *Matcher
	logger  *slog.Logger
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineTracker sends every final result to t.
func WithEngineTracker(t *Tracker) EngineOption {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithEngineMetrics sets the telemetry sink.
func WithEngineMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEngineMatcher replaces the condition matcher, e.g. to resize its pattern cache.
func WithEngineMatcher(m *Matcher) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithEngineClock overrides the clock used for override expiry and tracing.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine reading overrides and rules from storage.
func NewEngine(storage Storage, opts ...EngineOption) *Engine {
	if storage == nil {
		panic("feature: engine storage cannot be nil")
	}
	e := &Engine{
		storage: storage,
		matcher: NewMatcher(DefaultPatternCacheSize),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("engine"))
	return e
}

// EvalOption tunes a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	def        any
	hasDefault bool
	debug      bool
}

// WithDefault sets the value returned for missing flags and failed evaluations.
func WithDefault(v any) EvalOption {
	return func(o *evalOptions) {
		o.def = v
		o.hasDefault = true
	}
}

// WithDebug records an evaluation trace in Metadata.Debug.
func WithDebug() EvalOption {
	return func(o *evalOptions) {
		o.debug = true
	}
}

func applyEvalOptions(opts []EvalOption) evalOptions {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type trace struct {
	enabled bool
	steps   []DebugStep
	flag    *Flag // set once the flag is known, for panic recovery
}

func (t *trace) add(step, format string, args ...any) {
	if !t.enabled {
		return
	}
	t.steps = append(t.steps, DebugStep{Step: step, Detail: fmt.Sprintf(format, args...)})
}

// Evaluate evaluates flag for evalCtx. A nil flag yields ReasonNotFound.
func (e *Engine) Evaluate(ctx context.Context, flag *Flag, evalCtx EvaluationContext, opts ...EvalOption) EvaluationResult {
	key := ""
	if flag != nil {
		key = flag.Key
	}
	return e.run(ctx, key, evalCtx, applyEvalOptions(opts), func(tr *trace, o evalOptions) EvaluationResult {
		return e.evaluate(ctx, key, flag, evalCtx, o, tr)
	})
}

// EvaluateKey fetches the flag from storage and evaluates it.
func (e *Engine) EvaluateKey(ctx context.Context, key string, evalCtx EvaluationContext, opts ...EvalOption) EvaluationResult {
	return e.run(ctx, key, evalCtx, applyEvalOptions(opts), func(tr *trace, o evalOptions) EvaluationResult {
		flag, err := e.storage.GetFlag(ctx, key, evalCtx.OrganizationID)
		switch {
		case errors.Is(err, ErrFlagNotFound):
			flag = nil
		case err != nil:
			tr.add("lookup", "storage error: %v", err)
			return e.failure(key, nil, o, ErrorCodeStorage, errors.Join(ErrStorage, err))
		}
		return e.evaluate(ctx, key, flag, evalCtx, o, tr)
	})
}

// EvaluateBatch evaluates keys concurrently. A failing key never affects
// its siblings.
func (e *Engine) EvaluateBatch(ctx context.Context, keys []string, evalCtx EvaluationContext, opts ...EvalOption) map[string]EvaluationResult {
	futures := make([]*async.Future[EvaluationResult], len(keys))
	for i, key := range keys {
		futures[i] = async.Async(ctx, key, func(ctx context.Context, key string) (EvaluationResult, error) {
			return e.EvaluateKey(ctx, key, evalCtx, opts...), nil
		})
	}

	results := make(map[string]EvaluationResult, len(keys))
	for i, outcome := range async.Settle(futures...) {
		key := keys[i]
		if outcome.Err != nil {
			o := applyEvalOptions(opts)
			results[key] = e.failure(key, nil, o, ErrorCodeEvaluation, outcome.Err)
			continue
		}
		results[key] = outcome.Value
	}
	return results
}

func (e *Engine) run(ctx context.Context, key string, evalCtx EvaluationContext, o evalOptions, fn func(*trace, evalOptions) EvaluationResult) (res EvaluationResult) {
	start := e.now()
	tr := &trace{enabled: o.debug}

	defer func() {
		if r := recover(); r != nil {
			err := errors.Join(ErrEvaluationPanic, fmt.Errorf("%v", r))
			e.logger.ErrorContext(ctx, "flag evaluation panicked",
				logger.FlagKey(key),
				logger.Error(err),
			)
			tr.add("panic", "%v", r)
			res = e.failure(key, tr.flag, o, ErrorCodeEvaluation, err)
		}

		if res.Metadata.Source == "" {
			res.Metadata.Source = SourceStorage
		}
		elapsed := e.now().Sub(start)
		if o.debug {
			res.Metadata.Debug = &DebugInfo{Steps: tr.steps, Duration: elapsed}
		}
		e.observe(evalCtx, res, elapsed)
	}()

	return fn(tr, o)
}

func (e *Engine) evaluate(ctx context.Context, key string, flag *Flag, evalCtx EvaluationContext, o evalOptions, tr *trace) EvaluationResult {
	if flag == nil {
		tr.add("lookup", "flag %q not found", key)
		return EvaluationResult{FlagKey: key, Value: o.def, Reason: ReasonNotFound}
	}
	tr.flag = flag
	tr.add("lookup", "flag %q found", key)

	if !flag.Enabled {
		tr.add("enabled", "flag disabled")
		return EvaluationResult{FlagKey: key, Value: flag.DefaultValue, Reason: ReasonDisabled}
	}

	userID := evalCtx.EffectiveUserID()

	if userID != AnonymousUserID {
		ov, err := e.storage.GetOverride(ctx, flag.ID, userID)
		switch {
		case errors.Is(err, ErrOverrideNotFound):
			tr.add("override", "no override for user")
		case err != nil:
			tr.add("override", "storage error: %v", err)
			return e.failure(key, flag, o, ErrorCodeStorage, errors.Join(ErrStorage, err))
		case ov != nil && ov.Active(e.now()):
			tr.add("override", "active override for user")
			return EvaluationResult{FlagKey: key, Value: ov.Value, Reason: ReasonOverride}
		default:
			tr.add("override", "override inactive or expired")
		}
	} else {
		tr.add("override", "skipped for anonymous user")
	}

	rules := flag.Rules
	if rules == nil && flag.ID != "" {
		fetched, err := e.storage.GetRulesForFlag(ctx, flag.ID)
		if err != nil {
			tr.add("rules", "storage error: %v", err)
			return e.failure(key, flag, o, ErrorCodeStorage, errors.Join(ErrStorage, err))
		}
		rules = fetched
	}
	rules = slices.Clone(rules)
	slices.SortStableFunc(rules, func(a, b Rule) int { return cmp.Compare(a.Priority, b.Priority) })

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !e.matcher.Match(rule.Condition, evalCtx) {
			tr.add("rule", "rule %q did not match", rule.ID)
			continue
		}
		tr.add("rule", "rule %q matched", rule.ID)
		return ruleResult(key, flag, rule)
	}

	pct := flag.RolloutPercentage

	if len(flag.Variants) > 0 {
		bucket := Bucket(flag.Key, userID)
		included := IsIncluded(bucket, pct)
		tr.add("rollout", "bucket %d, rollout %d%%, included %s", bucket, pct, strconv.FormatBool(included))
		if !included {
			return EvaluationResult{
				FlagKey:  key,
				Value:    flag.DefaultValue,
				Reason:   ReasonPercentageRollout,
				Metadata: Metadata{Bucket: ptr(bucket), Included: ptr(false)},
			}
		}
		if v, ok := SelectVariant(flag.Variants, bucket); ok {
			tr.add("variant", "assigned variant %q", v.Key)
			return EvaluationResult{
				FlagKey:  key,
				Value:    v.Value,
				Variant:  v.Key,
				Reason:   ReasonPercentageRollout,
				Metadata: Metadata{Bucket: ptr(bucket), Included: ptr(true)},
			}
		}
		tr.add("variant", "no variant has a positive weight")
		return EvaluationResult{
			FlagKey:  key,
			Value:    flag.ServedValue(),
			Reason:   ReasonPercentageRollout,
			Metadata: Metadata{Bucket: ptr(bucket), Included: ptr(true)},
		}
	}

	if pct >= 100 {
		tr.add("rollout", "full rollout")
		return EvaluationResult{
			FlagKey:  key,
			Value:    flag.ServedValue(),
			Reason:   ReasonDefault,
			Metadata: Metadata{Included: ptr(true)},
		}
	}

	bucket := Bucket(flag.Key, userID)
	included := IsIncluded(bucket, pct)
	tr.add("rollout", "bucket %d, rollout %d%%, included %s", bucket, pct, strconv.FormatBool(included))
	value := flag.DefaultValue
	if included {
		value = flag.ServedValue()
	}
	return EvaluationResult{
		FlagKey:  key,
		Value:    value,
		Reason:   ReasonPercentageRollout,
		Metadata: Metadata{Bucket: ptr(bucket), Included: ptr(included)},
	}
}

func ruleResult(key string, flag *Flag, rule Rule) EvaluationResult {
	res := EvaluationResult{
		FlagKey:  key,
		Value:    rule.Value,
		Reason:   ReasonRuleMatch,
		Metadata: Metadata{RuleID: rule.ID},
	}
	if rule.Variant != "" {
		res.Variant = rule.Variant
		if v, ok := flag.Variant(rule.Variant); ok && res.Value == nil {
			res.Value = v.Value
		}
	}
	if res.Value == nil {
		res.Value = flag.ServedValue()
	}
	return res
}

func (e *Engine) failure(key string, flag *Flag, o evalOptions, code ErrorCode, err error) EvaluationResult {
	value := o.def
	if !o.hasDefault && flag != nil {
		value = flag.DefaultValue
	}
	e.logger.Warn("flag evaluation failed",
		logger.FlagKey(key),
		slog.String("error_code", string(code)),
		logger.Error(err),
	)
	return EvaluationResult{
		FlagKey:   key,
		Value:     value,
		Reason:    ReasonError,
		ErrorCode: code,
		Err:       err,
	}
}

func (e *Engine) observe(evalCtx EvaluationContext, res EvaluationResult, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveEvaluation(res.FlagKey, res.Reason, res.Metadata.Source, elapsed)
	}
	if e.tracker == nil {
		return
	}
	e.tracker.Track(EvaluationRecord{
		FlagKey:        res.FlagKey,
		UserID:         evalCtx.EffectiveUserID(),
		OrganizationID: evalCtx.OrganizationID,
		Value:          res.Value,
		Variant:        res.Variant,
		Reason:         res.Reason,
		Timestamp:      e.now(),
	})
}
