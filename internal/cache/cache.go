// Package cache 缓存仓库查询结果（已编码的字节）。
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onchainvitals/internal/config"
	"onchainvitals/internal/metrics"
)

// Cache 是查询结果缓存。实现必须并发安全。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

// New 按配置构建缓存；backend 为 none 时返回 Nop。
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// Lookup 调用 Get 并记录命中率。
func Lookup(ctx context.Context, c Cache, key string) ([]byte, bool) {
	val, ok, err := c.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return val, ok
}

// Nop 不缓存任何内容。
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Nop) Close() error { return nil }
