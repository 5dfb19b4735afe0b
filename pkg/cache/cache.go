// Package cache provides a small key/value store used for the catalog cache
// and session revocation. Values are stored JSON-encoded. Redis backs it in
// deployments; MemoryStore serves single-process runs and tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/pkg/metrics"
)

// Store is the cache contract.
type Store interface {
	// Get decodes the value at key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Driver() string
}

// Connect returns a Redis store when REDIS_ADDR is set and reachable, and an
// in-memory store otherwise. A non-nil error means Redis was configured but
// unreachable; the returned store is then the in-memory fallback.
func Connect(ctx context.Context) (Store, error) {
	addr := config.RedisAddr()
	if addr == "" {
		return NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.RedisPassword(),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return NewMemoryStore(), fmt.Errorf("cache: redis ping %s: %w", addr, err)
	}

	return NewRedisStore(client), nil
}

// Remember returns the cached value at key, or computes it with fn and caches
// the result for ttl. Cache failures never fail the call.
func Remember[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cached T
	if s != nil {
		if ok, err := s.Get(ctx, key, &cached); err == nil && ok {
			metrics.CacheHits.WithLabelValues(s.Driver()).Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues(s.Driver()).Inc()
	}

	fresh, err := fn(ctx)
	if err != nil {
		return fresh, err
	}
	if s != nil {
		_ = s.Set(ctx, key, fresh, ttl)
	}
	return fresh, nil
}

// ErrNilValue is returned by Set when asked to store an untyped nil.
var ErrNilValue = errors.New("cache: nil value")
