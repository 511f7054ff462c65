package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onchainvitals/internal/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "onchainvitals:query:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis 把查询结果放进共享 redis，多个实例可复用。
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	logger.Infof("Connected to Redis addr=%s db=%d", opts.Addr, opts.DB)
	return &Redis{client: rdb}, nil
}

// NewRedisFromClient 复用已有连接。
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		logger.Warnf("redis cache get failed key=%s: %v", key, err)
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, keyPrefix+key, val, ttl).Err(); err != nil {
		logger.Warnf("redis cache set failed key=%s: %v", key, err)
		return err
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
