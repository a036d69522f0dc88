// Package redis implements the fallcache backend contract on top of a Redis
// server via redis/go-redis. TTLs and counter increments use the
// server-native primitives, so entries expire without any client-side math
// and concurrent increments never lose an update.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	be "github.com/unkn0wn-root/fallcache/backend"
)

var ErrNilClient = errors.New("redis backend: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ be.Backend = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (b *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // non-positive TTL means "no expiry"
	}
	return b.rdb.Set(ctx, key, value, ttl).Err()
}

func (b *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return v, true, nil
}

func (b *Redis) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, key).Err()
}

func (b *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment relies on INCRBY for atomicity. The first writer of a counter
// (the one whose result equals delta) attaches the TTL, so the window starts
// when the counter is created and later increments do not extend it.
func (b *Redis) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	v, err := b.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, err
	}
	if v == delta && ttl > 0 {
		if err := b.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, err
		}
	}
	return v, nil
}

// Flush deletes only keys under the manager's prefix. SCAN keeps the server
// responsive on large keyspaces; FLUSHDB would clobber co-tenants.
func (b *Redis) Flush(ctx context.Context, prefix string) error {
	iter := b.rdb.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		if err := b.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Redis) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
