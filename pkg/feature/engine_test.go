package feature_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/featurekit/pkg/feature"
	"github.com/dmitrymomot/featurekit/pkg/logger"
)

func newEngine(t *testing.T, flags ...*feature.Flag) (*feature.Engine, *feature.MemoryStorage) {
	t.Helper()
	storage, err := feature.NewMemoryStorage(flags...)
	require.NoError(t, err)
	return feature.NewEngine(storage, feature.WithEngineLogger(logger.Discard())), storage
}

func TestEngine_Precedence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := feature.EvaluationContext{UserID: "user-1", Attributes: map[string]any{"plan": "pro"}}

	t.Run("nil flag is not found", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t)
		res := e.Evaluate(ctx, nil, user, feature.WithDefault("fallback"))
		assert.Equal(t, feature.ReasonNotFound, res.Reason)
		assert.Equal(t, "fallback", res.Value)
		assert.Empty(t, res.ErrorCode)
		assert.NoError(t, res.Err)
	})

	t.Run("missing key is not found", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t)
		res := e.EvaluateKey(ctx, "missing-flag", user, feature.WithDefault(false))
		assert.Equal(t, "missing-flag", res.FlagKey)
		assert.Equal(t, feature.ReasonNotFound, res.Reason)
		assert.Equal(t, false, res.Value)
	})

	t.Run("disabled serves default value", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{Key: "off", Enabled: false, DefaultValue: "v1", RolloutPercentage: 100})
		res := e.EvaluateKey(ctx, "off", user)
		assert.Equal(t, feature.ReasonDisabled, res.Reason)
		assert.Equal(t, "v1", res.Value)
	})

	t.Run("storage override beats rules", func(t *testing.T) {
		t.Parallel()
		flag := &feature.Flag{
			Key:               "checkout",
			Enabled:           true,
			DefaultValue:      false,
			RolloutPercentage: 100,
			Rules: []feature.Rule{{
				ID:        "r1",
				Enabled:   true,
				Condition: feature.Leaf("plan", feature.OpEquals, "pro"),
				Value:     "from-rule",
			}},
		}
		e, storage := newEngine(t, flag)
		require.NoError(t, storage.SetOverride(ctx, feature.Override{
			FlagID:  flag.ID,
			UserID:  "user-1",
			Value:   "from-override",
			Enabled: true,
		}))

		res := e.EvaluateKey(ctx, "checkout", user)
		assert.Equal(t, feature.ReasonOverride, res.Reason)
		assert.Equal(t, "from-override", res.Value)
		assert.Equal(t, feature.SourceStorage, res.Metadata.Source)

		other := e.EvaluateKey(ctx, "checkout", feature.EvaluationContext{UserID: "user-2", Attributes: user.Attributes})
		assert.Equal(t, feature.ReasonRuleMatch, other.Reason)
	})

	t.Run("expired or disabled override is ignored", func(t *testing.T) {
		t.Parallel()
		flag := &feature.Flag{Key: "tmp", Enabled: true, DefaultValue: false, RolloutPercentage: 100}
		e, storage := newEngine(t, flag)
		require.NoError(t, storage.SetOverride(ctx, feature.Override{
			FlagID:    flag.ID,
			UserID:    "user-1",
			Value:     "expired",
			Enabled:   true,
			ExpiresAt: time.Now().Add(-time.Minute),
		}))
		require.NoError(t, storage.SetOverride(ctx, feature.Override{
			FlagID: flag.ID,
			UserID: "user-2",
			Value:  "disabled",
		}))

		assert.Equal(t, feature.ReasonDefault, e.EvaluateKey(ctx, "tmp", feature.EvaluationContext{UserID: "user-1"}).Reason)
		assert.Equal(t, feature.ReasonDefault, e.EvaluateKey(ctx, "tmp", feature.EvaluationContext{UserID: "user-2"}).Reason)
	})

	t.Run("anonymous users skip override lookup", func(t *testing.T) {
		t.Parallel()
		m := new(MockStorage)
		e := feature.NewEngine(m, feature.WithEngineLogger(logger.Discard()))
		flag := &feature.Flag{ID: "f1", Key: "anon", Enabled: true, RolloutPercentage: 100, Rules: []feature.Rule{}}

		res := e.Evaluate(ctx, flag, feature.EvaluationContext{})
		assert.Equal(t, feature.ReasonDefault, res.Reason)
		m.AssertNotCalled(t, "GetOverride", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEngine_Rules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("plan equals pro", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{
			Key:          "pro-feature",
			Enabled:      true,
			DefaultValue: false,
			Rules: []feature.Rule{{
				ID:        "pro",
				Enabled:   true,
				Condition: feature.Leaf("attributes.plan", feature.OpEquals, "pro"),
				Value:     true,
			}},
		})

		res := e.EvaluateKey(ctx, "pro-feature", feature.EvaluationContext{
			UserID:     "user-1",
			Attributes: map[string]any{"plan": "pro"},
		})
		assert.Equal(t, feature.ReasonRuleMatch, res.Reason)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, "pro", res.Metadata.RuleID)
	})

	t.Run("priority order and disabled rules", func(t *testing.T) {
		t.Parallel()
		catchAll := feature.All()
		e, _ := newEngine(t, &feature.Flag{
			Key:               "ordered",
			Enabled:           true,
			RolloutPercentage: 100,
			Rules: []feature.Rule{
				{ID: "late", Priority: 20, Enabled: true, Condition: catchAll, Value: "late"},
				{ID: "off", Priority: 1, Enabled: false, Condition: catchAll, Value: "off"},
				{ID: "early", Priority: 10, Enabled: true, Condition: catchAll, Value: "early"},
			},
		})

		res := e.EvaluateKey(ctx, "ordered", feature.EvaluationContext{UserID: "u"})
		assert.Equal(t, "early", res.Value)
		assert.Equal(t, "early", res.Metadata.RuleID)
	})

	t.Run("rules loaded from storage", func(t *testing.T) {
		t.Parallel()
		flag := &feature.Flag{Key: "stored-rules", Enabled: true, DefaultValue: "none"}
		e, storage := newEngine(t, flag)
		require.NoError(t, storage.SetRules(ctx, flag.ID, []feature.Rule{{
			Enabled:   true,
			Condition: feature.Leaf("country", feature.OpIn, []any{"DE", "FR"}),
			Value:     "eu",
		}}))

		res := e.EvaluateKey(ctx, "stored-rules", feature.EvaluationContext{UserID: "u", Attributes: map[string]any{"country": "DE"}})
		assert.Equal(t, feature.ReasonRuleMatch, res.Reason)
		assert.Equal(t, "eu", res.Value)
		assert.NotEmpty(t, res.Metadata.RuleID)
	})

	t.Run("rule variant without value serves variant value", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{
			Key:      "theme",
			Type:     feature.TypeString,
			Enabled:  true,
			Variants: []feature.Variant{{Key: "light", Value: "#fff", Weight: 50}, {Key: "dark", Value: "#000", Weight: 50}},
			Rules: []feature.Rule{{
				ID:        "night-owls",
				Enabled:   true,
				Condition: feature.Leaf("nightOwl", feature.OpEquals, true),
				Variant:   "dark",
			}},
		})

		res := e.EvaluateKey(ctx, "theme", feature.EvaluationContext{UserID: "u", Attributes: map[string]any{"nightOwl": true}})
		assert.Equal(t, feature.ReasonRuleMatch, res.Reason)
		assert.Equal(t, "dark", res.Variant)
		assert.Equal(t, "#000", res.Value)
	})

	t.Run("rule without value serves flag value", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{
			Key:     "bool-rule",
			Type:    feature.TypeBoolean,
			Enabled: true,
			Rules:   []feature.Rule{{ID: "r", Enabled: true, Condition: feature.All()}},
		})
		res := e.EvaluateKey(ctx, "bool-rule", feature.EvaluationContext{UserID: "u"})
		assert.Equal(t, true, res.Value)
	})
}

func TestEngine_Rollout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("zero rollout excludes everyone", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{Key: "dark-launch", Enabled: true, RolloutPercentage: 0, DefaultValue: false})
		for _, user := range []string{"a", "b", "c", ""} {
			res := e.EvaluateKey(ctx, "dark-launch", feature.EvaluationContext{UserID: user})
			assert.Equal(t, false, res.Value)
			assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
			require.NotNil(t, res.Metadata.Included)
			assert.False(t, *res.Metadata.Included)
		}
	})

	t.Run("full rollout is default", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{Key: "ga", Type: feature.TypeBoolean, Enabled: true, RolloutPercentage: 100, DefaultValue: false})
		res := e.EvaluateKey(ctx, "ga", feature.EvaluationContext{UserID: "user-1"})
		assert.Equal(t, feature.ReasonDefault, res.Reason)
		assert.Equal(t, true, res.Value)
		require.NotNil(t, res.Metadata.Included)
		assert.True(t, *res.Metadata.Included)
		assert.Nil(t, res.Metadata.Bucket)
	})

	t.Run("partial rollout follows bucket", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{Key: "new-checkout", Type: feature.TypeString, Enabled: true, RolloutPercentage: 70, DefaultValue: "old", Value: "new"})

		// user-1 lands in bucket 63, user-2 in 82.
		in := e.EvaluateKey(ctx, "new-checkout", feature.EvaluationContext{UserID: "user-1"})
		assert.Equal(t, feature.ReasonPercentageRollout, in.Reason)
		assert.Equal(t, "new", in.Value)
		require.NotNil(t, in.Metadata.Bucket)
		assert.Equal(t, 63, *in.Metadata.Bucket)
		assert.True(t, *in.Metadata.Included)

		out := e.EvaluateKey(ctx, "new-checkout", feature.EvaluationContext{UserID: "user-2"})
		assert.Equal(t, "old", out.Value)
		assert.Equal(t, 82, *out.Metadata.Bucket)
		assert.False(t, *out.Metadata.Included)
	})

	t.Run("variants", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{
			Key:               "exp",
			Type:              feature.TypeString,
			Enabled:           true,
			RolloutPercentage: 100,
			DefaultValue:      "control",
			Variants: []feature.Variant{
				{Key: "a", Value: "blue", Weight: 50},
				{Key: "b", Value: "green", Weight: 50},
			},
		})

		// user-1 lands in bucket 39.
		res := e.EvaluateKey(ctx, "exp", feature.EvaluationContext{UserID: "user-1"})
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
		assert.Equal(t, "a", res.Variant)
		assert.Equal(t, "blue", res.Value)
		assert.Equal(t, 39, *res.Metadata.Bucket)
	})

	t.Run("variants outside rollout serve default", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t, &feature.Flag{
			Key:               "exp",
			Enabled:           true,
			RolloutPercentage: 10,
			DefaultValue:      "control",
			Variants:          []feature.Variant{{Key: "a", Value: "blue", Weight: 100}},
		})

		res := e.EvaluateKey(ctx, "exp", feature.EvaluationContext{UserID: "user-1"})
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
		assert.Equal(t, "control", res.Value)
		assert.Empty(t, res.Variant)
		assert.False(t, *res.Metadata.Included)
	})
}

func TestEngine_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errDown := errors.New("db down")
	user := feature.EvaluationContext{UserID: "user-1"}

	t.Run("override lookup failure uses caller default", func(t *testing.T) {
		t.Parallel()
		m := new(MockStorage)
		m.On("GetOverride", mock.Anything, "f1", "user-1").Return(nil, errDown)
		e := feature.NewEngine(m, feature.WithEngineLogger(logger.Discard()))

		res := e.Evaluate(ctx, &feature.Flag{ID: "f1", Key: "k", Enabled: true, DefaultValue: "flag-default"}, user, feature.WithDefault("caller"))
		assert.Equal(t, feature.ReasonError, res.Reason)
		assert.Equal(t, feature.ErrorCodeStorage, res.ErrorCode)
		assert.Equal(t, "caller", res.Value)
		assert.ErrorIs(t, res.Err, feature.ErrStorage)
		assert.ErrorIs(t, res.Err, errDown)
		m.AssertExpectations(t)
	})

	t.Run("rules failure falls back to flag default", func(t *testing.T) {
		t.Parallel()
		m := new(MockStorage)
		m.On("GetOverride", mock.Anything, "f1", "user-1").Return(nil, feature.ErrOverrideNotFound)
		m.On("GetRulesForFlag", mock.Anything, "f1").Return(nil, errDown)
		e := feature.NewEngine(m, feature.WithEngineLogger(logger.Discard()))

		res := e.Evaluate(ctx, &feature.Flag{ID: "f1", Key: "k", Enabled: true, DefaultValue: "flag-default"}, user)
		assert.Equal(t, feature.ReasonError, res.Reason)
		assert.Equal(t, "flag-default", res.Value)
		m.AssertExpectations(t)
	})

	t.Run("flag lookup failure", func(t *testing.T) {
		t.Parallel()
		m := new(MockStorage)
		m.On("GetFlag", mock.Anything, "k", "").Return(nil, errDown)
		e := feature.NewEngine(m, feature.WithEngineLogger(logger.Discard()))

		res := e.EvaluateKey(ctx, "k", user, feature.WithDefault(42))
		assert.Equal(t, feature.ReasonError, res.Reason)
		assert.Equal(t, feature.ErrorCodeStorage, res.ErrorCode)
		assert.Equal(t, 42, res.Value)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		t.Parallel()
		m := new(MockStorage)
		m.On("GetOverride", mock.Anything, "f1", "user-1").Run(func(mock.Arguments) { panic("boom") })
		e := feature.NewEngine(m, feature.WithEngineLogger(logger.Discard()))

		res := e.Evaluate(ctx, &feature.Flag{ID: "f1", Key: "k", Enabled: true, DefaultValue: "safe"}, user, feature.WithDebug())
		assert.Equal(t, feature.ReasonError, res.Reason)
		assert.Equal(t, feature.ErrorCodeEvaluation, res.ErrorCode)
		assert.Equal(t, "safe", res.Value)
		assert.ErrorIs(t, res.Err, feature.ErrEvaluationPanic)
		require.NotNil(t, res.Metadata.Debug)
		assert.Equal(t, "panic", res.Metadata.Debug.Steps[len(res.Metadata.Debug.Steps)-1].Step)
	})
}

func TestEngine_Debug(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, &feature.Flag{Key: "traced", Enabled: true, RolloutPercentage: 50})

	res := e.EvaluateKey(ctx, "traced", feature.EvaluationContext{UserID: "user-1"}, feature.WithDebug())
	require.NotNil(t, res.Metadata.Debug)
	steps := make([]string, 0, len(res.Metadata.Debug.Steps))
	for _, s := range res.Metadata.Debug.Steps {
		steps = append(steps, s.Step)
	}
	assert.Equal(t, []string{"lookup", "override", "rollout"}, steps)
	assert.GreaterOrEqual(t, res.Metadata.Debug.Duration, time.Duration(0))

	plain := e.EvaluateKey(ctx, "traced", feature.EvaluationContext{UserID: "user-1"})
	assert.Nil(t, plain.Metadata.Debug)
}

func TestEngine_EvaluateBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing flag", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t)
		results := e.EvaluateBatch(ctx, []string{"missing-flag"}, feature.EvaluationContext{})
		require.Len(t, results, 1)
		assert.Equal(t, feature.ReasonNotFound, results["missing-flag"].Reason)
	})

	t.Run("failure stays isolated", func(t *testing.T) {
		t.Parallel()
		m := new(MockStorage)
		m.On("GetFlag", mock.Anything, "broken", "").Return(nil, errors.New("timeout"))
		m.On("GetFlag", mock.Anything, "ok", "").Return(&feature.Flag{Key: "ok", Enabled: true, RolloutPercentage: 100, Rules: []feature.Rule{}}, nil)
		m.On("GetFlag", mock.Anything, "gone", "").Return(nil, feature.ErrFlagNotFound)
		e := feature.NewEngine(m, feature.WithEngineLogger(logger.Discard()))

		results := e.EvaluateBatch(ctx, []string{"broken", "ok", "gone"}, feature.EvaluationContext{}, feature.WithDefault(false))
		require.Len(t, results, 3)
		assert.Equal(t, feature.ReasonError, results["broken"].Reason)
		assert.Equal(t, false, results["broken"].Value)
		assert.Equal(t, feature.ReasonDefault, results["ok"].Reason)
		assert.Equal(t, true, results["ok"].Value)
		assert.Equal(t, feature.ReasonNotFound, results["gone"].Reason)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		e, _ := newEngine(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		results := e.EvaluateBatch(cctx, []string{"a", "b"}, feature.EvaluationContext{}, feature.WithDefault("d"))
		require.Len(t, results, 2)
		for _, res := range results {
			assert.Equal(t, feature.ReasonError, res.Reason)
			assert.Equal(t, "d", res.Value)
		}
	})
}

type recordingMetrics struct {
	evaluations chan feature.Reason
}

func (m *recordingMetrics) ObserveEvaluation(_ string, reason feature.Reason, _ feature.Source, _ time.Duration) {
	m.evaluations <- reason
}

func (m *recordingMetrics) ObserveCacheLookup(bool) {}

func TestEngine_TrackingAndMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage, err := feature.NewMemoryStorage(&feature.Flag{Key: "tracked", Enabled: true, RolloutPercentage: 100})
	require.NoError(t, err)
	tracker := feature.NewTracker(storage, feature.TrackerOptions{BatchTimeout: time.Hour, Logger: logger.Discard()})
	metrics := &recordingMetrics{evaluations: make(chan feature.Reason, 4)}
	e := feature.NewEngine(storage,
		feature.WithEngineTracker(tracker),
		feature.WithEngineMetrics(metrics),
		feature.WithEngineLogger(logger.Discard()),
	)

	e.EvaluateKey(ctx, "tracked", feature.EvaluationContext{UserID: "user-1", OrganizationID: "org-1"})
	e.EvaluateKey(ctx, "missing", feature.EvaluationContext{})
	require.NoError(t, tracker.Close(ctx))

	records := storage.Evaluations()
	require.Len(t, records, 2)
	assert.Equal(t, "tracked", records[0].FlagKey)
	assert.Equal(t, "user-1", records[0].UserID)
	assert.Equal(t, "org-1", records[0].OrganizationID)
	assert.Equal(t, feature.ReasonDefault, records[0].Reason)
	assert.NotEmpty(t, records[0].EventID)
	assert.Equal(t, feature.AnonymousUserID, records[1].UserID)
	assert.Equal(t, feature.ReasonNotFound, records[1].Reason)

	assert.Equal(t, feature.ReasonDefault, <-metrics.evaluations)
	assert.Equal(t, feature.ReasonNotFound, <-metrics.evaluations)
}
