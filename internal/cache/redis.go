package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPayload   = "payload"
	fieldWrittenAt = "written_at"
)

// RedisBackend stores each entry as a hash with payload and write time.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a backend. A zero ttl keeps entries forever.
func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: "followtrack:", ttl: ttl}
}

func (b *RedisBackend) key(k string) string { return b.prefix + k }

// Get reads the payload and write time stored in the key hash.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	vals, err := b.rdb.HGetAll(ctx, b.key(key)).Result()
	if err != nil {
		return nil, time.Time{}, false, err
	}
	payload, ok := vals[fieldPayload]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(vals[fieldWrittenAt], 10, 64)
	if err != nil {
		return nil, time.Time{}, false, errors.New("redis entry missing written_at")
	}
	return []byte(payload), time.UnixMilli(ms), true, nil
}

// SetMany writes all items inside MULTI/EXEC.
func (b *RedisBackend) SetMany(ctx context.Context, items []Item, at time.Time) error {
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, it := range items {
			k := b.key(it.Key)
			pipe.HSet(ctx, k, fieldPayload, it.Payload, fieldWrittenAt, at.UnixMilli())
			if b.ttl > 0 {
				pipe.Expire(ctx, k, b.ttl)
			}
		}
		return nil
	})
	return err
}

// Delete removes key.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.key(key)).Err()
}
