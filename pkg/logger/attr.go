package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// FlagKey records the evaluated flag key under the key "flag_key".
func FlagKey(key string) slog.Attr {
	return slog.String("flag_key", key)
}

// Reason records an evaluation reason under the key "reason".
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// UserID records the user identifier under the key "user_id".
// Empty ids produce an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// OrganizationID records the organization identifier under the key "organization_id".
// Empty ids produce an empty Attr.
func OrganizationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("organization_id", id)
}

// CacheKey records a cache key under the key "cache_key".
func CacheKey(key string) slog.Attr {
	return slog.String("cache_key", key)
}

// Environment records the environment name under the key "env".
func Environment(env string) slog.Attr {
	return slog.String("env", env)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Interval records a scheduling interval under the key "interval".
func Interval(d time.Duration) slog.Attr {
	return slog.Duration("interval", d)
}

// Count records a counter under the given key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
