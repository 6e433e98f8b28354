package kvsync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workhub/internal/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackend(client, logger.Discard())
	t.Cleanup(func() { b.Close() })

	return mr, b
}

func TestRedisBackend_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	mr, b := setupTestRedis(t)

	_, ok, err := b.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.SetItem(ctx, "k", `"v"`, "o"))
	v, ok, err := b.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"v"`, v)

	stored, err := mr.Get("workhub:kv:k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, stored)

	require.NoError(t, b.RemoveItem(ctx, "k", "o"))
	assert.False(t, mr.Exists("workhub:kv:k"))
}

func TestRedisBackend_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, b := setupTestRedis(t)

	events := make(chan StorageEvent, 4)
	stop, err := b.Watch(ctx, func(ev StorageEvent) { events <- ev })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, b.SetItem(ctx, "auth-flag", "false", "origin-1"))
	require.NoError(t, b.RemoveItem(ctx, "auth-flag", "origin-1"))

	for _, want := range []*string{strPtr("false"), nil} {
		select {
		case ev := <-events:
			assert.Equal(t, "auth-flag", ev.Key)
			assert.Equal(t, "origin-1", ev.Origin)
			assert.Equal(t, want, ev.Value)
		case <-time.After(2 * time.Second):
			t.Fatal("no change observed")
		}
	}
}

func TestRedisBackend_Unreachable(t *testing.T) {
	mr, b := setupTestRedis(t)
	mr.Close()

	_, _, err := b.GetItem(context.Background(), "k")
	assert.Error(t, err)
}
