package state

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of the go-redis client used by RedisBackend.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisBackend keeps the document under a single key. SET replaces the
// value atomically.
type RedisBackend struct {
	rdb   redisCmdable
	key   string
	close func() error
}

// OpenRedis connects and verifies the connection.
func OpenRedis(ctx context.Context, opts *redis.Options, key string) (*RedisBackend, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	b := newRedisBackend(client, key)
	b.close = client.Close
	return b, nil
}

func newRedisBackend(rdb redisCmdable, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{rdb: rdb, key: key}
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *RedisBackend) Write(ctx context.Context, data []byte) error {
	return b.rdb.Set(ctx, b.key, data, 0).Err()
}

func (b *RedisBackend) Close() error {
	if b.close != nil {
		return b.close()
	}
	return nil
}
