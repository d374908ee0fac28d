package featurekit_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/featurekit"
	"github.com/dmitrymomot/featurekit/pkg/config"
	"github.com/dmitrymomot/featurekit/pkg/environment"
	"github.com/dmitrymomot/featurekit/pkg/feature"
	"github.com/dmitrymomot/featurekit/pkg/logger"
	"github.com/dmitrymomot/featurekit/pkg/redis"
)

func testConfig(t *testing.T) featurekit.Config {
	t.Helper()
	var cfg featurekit.Config
	require.NoError(t, config.Parse(&cfg))
	cfg.Environment = "development"
	return cfg
}

func TestNew_FlagFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "flags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flags:
  - key: new-checkout
    enabled: true
    rolloutPercentage: 100
`), 0o600))

	cfg := testConfig(t)
	cfg.FlagFile = path

	kit, err := featurekit.New(ctx, cfg,
		featurekit.WithLogger(logger.Discard()),
		featurekit.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kit.Close(context.Background()) })

	assert.Equal(t, environment.Development, kit.Environment)
	assert.NotNil(t, kit.Metrics)
	require.NoError(t, kit.Start(ctx))

	res := kit.Client.Evaluate(ctx, "new-checkout", feature.EvaluationContext{UserID: "u"}, false)
	assert.Equal(t, feature.ReasonDefault, res.Reason)
	assert.Equal(t, true, res.Value)

	require.True(t, kit.Client.Overrides().Set("new-checkout", false))
	res = kit.Client.Evaluate(ctx, "new-checkout", feature.EvaluationContext{UserID: "u"}, false)
	assert.Equal(t, feature.SourceLocal, res.Metadata.Source)
}

func TestNew_CustomStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage, err := feature.NewMemoryStorage(&feature.Flag{Key: "a", Enabled: true, RolloutPercentage: 100})
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	kit, err := featurekit.New(ctx, cfg,
		featurekit.WithLogger(logger.Discard()),
		featurekit.WithStorage(storage),
	)
	require.NoError(t, err)
	defer kit.Close(ctx)

	assert.Nil(t, kit.Metrics)
	assert.Same(t, storage, kit.Storage)
	assert.Equal(t, true, kit.Client.Evaluate(ctx, "a", feature.EvaluationContext{}, false).Value)
}

func TestNew_EnvironmentFromContext(t *testing.T) {
	t.Parallel()
	ctx := environment.WithContext(context.Background(), environment.Production)

	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	kit, err := featurekit.New(ctx, cfg, featurekit.WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer kit.Close(ctx)

	assert.Equal(t, environment.Production, kit.Environment)
	assert.Equal(t, environment.Production, kit.Client.Overrides().Environment())
	assert.False(t, kit.Client.Overrides().Set("a", true), "production refuses local overrides")
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing flag file", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.FlagFile = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := featurekit.New(ctx, cfg, featurekit.WithLogger(logger.Discard()), featurekit.WithRegisterer(prometheus.NewRegistry()))
		assert.ErrorIs(t, err, featurekit.ErrOpenStorage)
	})

	t.Run("invalid redis url", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.RedisEnabled = true
		cfg.Redis.ConnectionURL = "not-a-url"
		_, err := featurekit.New(ctx, cfg, featurekit.WithLogger(logger.Discard()), featurekit.WithRegisterer(prometheus.NewRegistry()))
		assert.ErrorIs(t, err, featurekit.ErrConnect)
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("metrics registered twice", func(t *testing.T) {
		t.Parallel()
		reg := prometheus.NewRegistry()
		cfg := testConfig(t)
		kit, err := featurekit.New(ctx, cfg, featurekit.WithLogger(logger.Discard()), featurekit.WithRegisterer(reg))
		require.NoError(t, err)
		defer kit.Close(ctx)

		_, err = featurekit.New(ctx, cfg, featurekit.WithLogger(logger.Discard()), featurekit.WithRegisterer(reg))
		assert.ErrorIs(t, err, featurekit.ErrMetrics)
	})
}
