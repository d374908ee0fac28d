package featurekit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/featurekit/pkg/cache"
	"github.com/dmitrymomot/featurekit/pkg/environment"
	"github.com/dmitrymomot/featurekit/pkg/feature"
	"github.com/dmitrymomot/featurekit/pkg/flagfile"
	"github.com/dmitrymomot/featurekit/pkg/logger"
	"github.com/dmitrymomot/featurekit/pkg/metrics"
	"github.com/dmitrymomot/featurekit/pkg/override"
	"github.com/dmitrymomot/featurekit/pkg/poller"
	"github.com/dmitrymomot/featurekit/pkg/redis"
)

// Kit is an assembled flag runtime.
type Kit struct {
	Client      *feature.Client
	Storage     feature.Storage
	Metrics     *metrics.Collector // nil when metrics are disabled
	Logger      *slog.Logger
	Environment environment.Environment

	flagFile *flagfile.Storage
	redis    *goredis.Client
	watch    bool
}

// New builds a Kit from cfg. Without a flag file or WithStorage the kit
// starts with an empty in-memory storage. An environment set on ctx with
// environment.WithContext takes precedence over cfg.Environment.
func New(ctx context.Context, cfg Config, opts ...Option) (*Kit, error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	env := environment.FromContext(ctx)
	if env == "" {
		env = environment.Detect(cfg.Environment)
	}
	log := o.logger
	if log == nil {
		log = logger.New(logger.WithEnvironment(env, cfg.ServiceName))
	}

	k := &Kit{
		Logger:      log,
		Environment: env,
		watch:       cfg.WatchFlagFile,
	}

	clientOpts := []feature.Option{feature.WithLogger(log)}
	if cfg.Client.Overrides.Environment == "" {
		clientOpts = append(clientOpts, feature.WithOverrideOptions(override.WithEnvironment(env)))
	}
	clientOpts = append(clientOpts, feature.FromConfig(cfg.Client)...)

	if cfg.RedisEnabled {
		conn, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, errors.Join(ErrConnect, err)
		}
		k.redis = conn
		store := redis.NewStorageWithConfig(conn, cfg.Redis)
		clientOpts = append(clientOpts,
			feature.WithCacheOptions(cache.WithPersister(store), cache.WithQuotaClassifier(redis.IsQuotaExceeded)),
			feature.WithOverrideOptions(override.WithStore(store)),
		)
	}

	if o.registerer != nil && cfg.MetricsEnabled {
		col, err := metrics.New(o.registerer)
		if err != nil {
			k.closeRedis()
			return nil, errors.Join(ErrMetrics, err)
		}
		k.Metrics = col
		clientOpts = append(clientOpts,
			feature.WithMetrics(col),
			feature.WithPollerOptions(poller.WithObserver(col.ObservePoll)),
		)
	}

	storage, err := k.openStorage(cfg, o, log)
	if err != nil {
		k.closeRedis()
		return nil, err
	}
	k.Storage = storage

	k.Client = feature.NewClient(storage, append(clientOpts, o.clientOpts...)...)

	if k.Metrics != nil {
		if err := errors.Join(
			k.Metrics.RegisterCache(k.Client.Cache().StatsSnapshot),
			k.Metrics.RegisterTracker(k.Client.Tracker()),
		); err != nil {
			_ = k.Close(ctx)
			return nil, errors.Join(ErrMetrics, err)
		}
	}

	return k, nil
}

func (k *Kit) openStorage(cfg Config, o options, log *slog.Logger) (feature.Storage, error) {
	if o.storage != nil {
		return o.storage, nil
	}
	if cfg.FlagFile == "" {
		mem, err := feature.NewMemoryStorage()
		if err != nil {
			return nil, errors.Join(ErrOpenStorage, err)
		}
		return mem, nil
	}

	// The client does not exist yet; the callback resolves it lazily.
	fs, err := flagfile.Open(cfg.FlagFile,
		flagfile.WithLogger(log),
		flagfile.WithOnChange(func(ctx context.Context) error {
			return k.Client.Refresh(ctx)
		}),
	)
	if err != nil {
		return nil, errors.Join(ErrOpenStorage, err)
	}
	k.flagFile = fs
	return fs, nil
}

// Start loads flags, starts polling and, when configured, watches the flag file.
func (k *Kit) Start(ctx context.Context) error {
	if err := k.Client.Start(ctx); err != nil {
		return err
	}
	if k.flagFile != nil && k.watch {
		if err := k.flagFile.Watch(ctx); err != nil {
			return err
		}
	}
	k.Logger.InfoContext(ctx, "feature runtime started", logger.Environment(k.Environment.String()))
	return nil
}

// Close stops background work, flushes analytics and closes connections.
func (k *Kit) Close(ctx context.Context) error {
	var errs []error
	if k.flagFile != nil {
		errs = append(errs, k.flagFile.Close())
	}
	if k.Client != nil {
		errs = append(errs, k.Client.Close(ctx))
	}
	errs = append(errs, k.closeRedis())
	return errors.Join(errs...)
}

func (k *Kit) closeRedis() error {
	if k.redis == nil {
		return nil
	}
	err := k.redis.Close()
	k.redis = nil
	return err
}
