// Package ristretto implements the fallcache backend contract on an
// in-process ristretto cache. TTLs use ristretto's native per-entry expiry.
//
// Because the store lives inside one process, an internal mutex is the
// native atomic primitive for Increment: no other process can touch the
// counter, and the mutex removes the read-modify-write race between
// goroutines.
package ristretto

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	be "github.com/unkn0wn-root/fallcache/backend"
)

// ErrNotCounter is returned by Increment when the stored value is not an
// integer counter.
var ErrNotCounter = errors.New("ristretto backend: value is not a counter")

type Ristretto struct {
	c *rc.Cache

	incMu sync.Mutex // serializes Increment read-modify-write
}

var _ be.Backend = (*Ristretto)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Ristretto, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto backend: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c}, nil
}

func (b *Ristretto) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // ristretto treats 0 as "no expiry"
	}
	b.c.SetWithTTL(key, value, int64(len(value))+1, ttl)
	return nil
}

func (b *Ristretto) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	bts, _ := v.([]byte)
	if bts == nil {
		// self-heal: drop unexpected entry shape
		b.c.Del(key)
		return nil, false, nil
	}
	return bts, true, nil
}

func (b *Ristretto) Delete(_ context.Context, key string) error {
	b.c.Del(key)
	return nil
}

func (b *Ristretto) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Ristretto) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	b.incMu.Lock()
	defer b.incMu.Unlock()

	cur := int64(0)
	if raw, ok, _ := b.Get(ctx, key); ok {
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, ErrNotCounter
		}
		cur = v
	}

	// ristretto has no TTL readback, so every increment rewrites the window.
	// Throttle windows only grow, which fails safe (never under-counts).
	next := cur + delta
	if ttl < 0 {
		ttl = 0
	}
	b.c.SetWithTTL(key, []byte(strconv.FormatInt(next, 10)), 1, ttl)
	b.c.Wait()
	return next, nil
}

// Flush drops every entry. The instance is owned by a single namespace, so
// prefix scoping is unnecessary.
func (b *Ristretto) Flush(context.Context, string) error {
	b.c.Clear()
	return nil
}

func (b *Ristretto) Close(context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Wait blocks until buffered writes have been applied. Useful in tests;
// production code should not need it.
func (b *Ristretto) Wait() { b.c.Wait() }

// Metrics exposes ristretto's metrics when enabled in Config (not part of
// the backend contract).
func (b *Ristretto) Metrics() *rc.Metrics { return b.c.Metrics }
