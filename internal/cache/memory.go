package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"onchainvitals/internal/scheduler"
)

const (
	defaultShardCount = 32
	sweepInterval     = time.Minute
)

type entry struct {
	val     []byte
	expires time.Time
}

type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

// Memory 是按 key 分片的进程内缓存。
type Memory struct {
	shards []shard
	now    func() time.Time

	stop     context.CancelFunc
	stopOnce sync.Once
}

// NewMemory 创建缓存并启动后台清理，Close 时停止。
func NewMemory() *Memory {
	m := newMemory(defaultShardCount)
	ctx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	sweeper := &scheduler.IntervalScheduler{Name: "cache-sweep", Interval: sweepInterval}
	go sweeper.Run(ctx, func(context.Context) error {
		m.Sweep()
		return nil
	})
	return m
}

func newMemory(shards int) *Memory {
	if shards <= 0 {
		shards = 1
	}
	m := &Memory{shards: make([]shard, shards), now: time.Now}
	for i := range m.shards {
		m.shards[i] = shard{data: make(map[string]entry)}
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	return &m.shards[hashKey(key)%uint32(len(m.shards))]
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sh := m.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		sh.mu.Lock()
		if cur, still := sh.data[key]; still && cur.expires.Equal(e.expires) {
			delete(sh.data, key)
		}
		sh.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key 不能为空")
	}
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	sh := m.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = e
	sh.mu.Unlock()
	return nil
}

// Len 返回未过期条目数。
func (m *Memory) Len() int {
	now := m.now()
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for _, e := range sh.data {
			if e.expires.IsZero() || now.Before(e.expires) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// Sweep 删除所有已过期条目，返回删除数量。
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for k, e := range sh.data {
			if !e.expires.IsZero() && !now.Before(e.expires) {
				delete(sh.data, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// size 返回实际持有的条目数（含已过期未清理的）。
func (m *Memory) size() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}

func (m *Memory) Close() error {
	m.stopOnce.Do(func() {
		if m.stop != nil {
			m.stop()
		}
	})
	return nil
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
