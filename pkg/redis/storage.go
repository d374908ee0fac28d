package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage is a prefixed key/value wrapper around a go-redis client.
// It backs the result cache persister and the override blob store.
type Storage struct {
	db     redis.UniversalClient
	prefix string
}

// NewStorage wraps client. Keys are written as-is.
func NewStorage(client redis.UniversalClient) *Storage {
	return &Storage{db: client}
}

// NewStorageWithConfig wraps client and applies cfg.KeyPrefix to every key.
func NewStorageWithConfig(client redis.UniversalClient, cfg Config) *Storage {
	return &Storage{db: client, prefix: cfg.KeyPrefix}
}

// Get returns nil, nil for empty keys and missing values.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores val under key. A zero ttl means no expiration.
// Out-of-memory replies are reported as ErrQuotaExceeded.
func (s *Storage) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	if err := s.db.Set(ctx, s.prefix+key, val, ttl).Err(); err != nil {
		if IsQuotaExceeded(err) {
			return errors.Join(ErrQuotaExceeded, err)
		}
		return err
	}
	return nil
}

// Delete removes key. Empty keys are ignored.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.db.Del(ctx, s.prefix+key).Err()
}

// Close terminates the underlying client.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Conn returns the underlying client.
func (s *Storage) Conn() redis.UniversalClient {
	return s.db
}

// IsQuotaExceeded reports whether err means the server refused a write
// because it ran out of memory.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	return strings.HasPrefix(err.Error(), "OOM ")
}
