// Package cache stores rendered calculation results keyed by kind and inputs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/iwvelando/venture-calc/internal/config"
	"github.com/iwvelando/venture-calc/pkg/constants"
	"go.uber.org/zap"
)

// keyPrefix namespaces every key so a shared Redis stays tidy.
const keyPrefix = "venture-calc:result:"

// Cache is a string key/value store for calculation results. Implementations
// report misses and backend failures alike as a miss from Get.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

// Key derives a stable cache key for a calculation. Map keys are sorted by
// encoding/json so equal inputs hash identically.
func Key(kind string, params map[string]interface{}) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params for cache key: %w", err)
	}
	digest := xxhash.New()
	_, _ = digest.WriteString(kind)
	_, _ = digest.Write([]byte{0})
	_, _ = digest.Write(canonical)
	return keyPrefix + kind + ":" + strconv.FormatUint(digest.Sum64(), 16), nil
}

// New builds the cache selected by cfg.
func New(cfg config.CacheConfig, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl, err := cfg.TTLDuration()
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case constants.CacheBackendMemory, "":
		return NewMemory(ttl), nil
	case constants.CacheBackendRedis:
		logger.Info("using redis result cache",
			zap.String("op", "cache.New"),
			zap.String("address", cfg.RedisAddress),
			zap.Duration("ttl", ttl),
		)
		return NewRedis(RedisOptions{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      ttl,
		}), nil
	case constants.CacheBackendNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// Noop never stores anything.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) (string, bool) { return "", false }

// Set discards the value.
func (Noop) Set(context.Context, string, string) error { return nil }

// Close releases nothing.
func (Noop) Close() error { return nil }

// Closer is implemented by caches holding external connections.
type Closer interface {
	Close() error
}

// Close releases c if it holds resources.
func Close(c Cache) error {
	if closer, ok := c.(Closer); ok {
		return closer.Close()
	}
	return nil
}

type clock func() time.Time
