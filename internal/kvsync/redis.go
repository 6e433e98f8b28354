package kvsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/workhub/internal/logger"
)

const (
	redisKeyPrefix     = "workhub:kv:"
	redisChangeChannel = "workhub:kv:changed"
)

// redisChange is the payload published on every committed change.
type redisChange struct {
	Key    string  `json:"key"`
	Value  *string `json:"value"`
	Origin string  `json:"origin"`
}

// RedisBackend implements Backend on Redis. Values live under a prefixed
// key and every write publishes a change message, so processes on other
// hosts that share the Redis instance stay in sync.
type RedisBackend struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBackend wraps an existing client. Close closes the client.
func NewRedisBackend(client *redis.Client, l *slog.Logger) *RedisBackend {
	if l == nil {
		l = logger.WithComponent("kvsync.redis")
	}
	return &RedisBackend{client: client, logger: l}
}

// GetItem implements Backend.
func (r *RedisBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return v, true, nil
}

// SetItem implements Backend.
func (r *RedisBackend) SetItem(ctx context.Context, key, value, origin string) error {
	msg, err := json.Marshal(redisChange{Key: key, Value: &value, Origin: origin})
	if err != nil {
		return fmt.Errorf("marshaling change for %q: %w", key, err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeyPrefix+key, value, 0)
		p.Publish(ctx, redisChangeChannel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Backend.
func (r *RedisBackend) RemoveItem(ctx context.Context, key, origin string) error {
	msg, err := json.Marshal(redisChange{Key: key, Origin: origin})
	if err != nil {
		return fmt.Errorf("marshaling change for %q: %w", key, err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, redisKeyPrefix+key)
		p.Publish(ctx, redisChangeChannel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("removing key %q: %w", key, err)
	}
	return nil
}

// Watch implements Backend by subscribing to the change channel.
func (r *RedisBackend) Watch(ctx context.Context, fn func(StorageEvent)) (func(), error) {
	ps := r.client.Subscribe(ctx, redisChangeChannel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", redisChangeChannel, err)
	}

	ch := ps.Channel()
	go func() {
		for m := range ch {
			var c redisChange
			if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
				r.logger.Warn("dropping malformed kv change", "error", err)
				continue
			}
			fn(StorageEvent{Key: c.Key, Value: c.Value, Origin: c.Origin})
		}
	}()

	stop := context.AfterFunc(ctx, func() { ps.Close() })
	return func() {
		stop()
		ps.Close()
	}, nil
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
