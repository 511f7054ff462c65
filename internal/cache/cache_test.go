package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"onchainvitals/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newMemory(4)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), got)
	assert.Equal(t, 2, m.Len())

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())

	assert.Error(t, m.Set(ctx, "", nil, 0))
}

func TestMemorySweepDropsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newMemory(4)
	m.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, m.Set(ctx, "keep", []byte("v"), 0))
	now = now.Add(time.Hour)
	require.NoError(t, m.Set(ctx, "fresh", []byte("v"), time.Minute))
	assert.Equal(t, 1002, m.size())

	assert.Equal(t, 1000, m.Sweep())
	assert.Equal(t, 2, m.size())
	assert.Equal(t, 2, m.Len())
}

func TestMemoryCloseIsIdempotent(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	src := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", src, 0))
	src[0] = 'x'
	got, _, _ := m.Get(ctx, "k")
	got[1] = 'y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestNewBackends(t *testing.T) {
	c, err := New(context.Background(), config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	c, err = New(context.Background(), config.CacheConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(context.Background(), config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)

	_, ok := Lookup(context.Background(), Nop{}, "x")
	assert.False(t, ok)
}
