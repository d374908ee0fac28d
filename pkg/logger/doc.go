// Package logger builds slog loggers for featurekit components.
//
// New creates a *slog.Logger configured by Option functions: output format
// (json or text), level, static attributes, per-environment presets and
// context extractors that add request-scoped attributes to every record.
//
// Attribute helpers (FlagKey, Reason, CacheKey, Error, ...) keep key names
// consistent across packages. Helpers for optional values return an empty
// slog.Attr that slog drops, so callers do not need nil checks:
//
//	log.Warn("flag evaluation degraded", logger.FlagKey(key), logger.Error(err))
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Detect(""), "flags"),
//	    logger.WithOutput(os.Stderr),
//	)
//	client, err := feature.NewClient(store, feature.WithLogger(log))
//
// Components accept a nil logger and fall back to slog.Default (see OrDefault).
package logger
