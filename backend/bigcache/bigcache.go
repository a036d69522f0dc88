// Package bigcache implements the fallcache backend contract on an
// in-process bigcache instance. bigcache has no per-entry TTL (only a global
// LifeWindow), so entries carry the internal/envelope framing with their own
// expiry, checked lazily on read.
package bigcache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	be "github.com/unkn0wn-root/fallcache/backend"
	"github.com/unkn0wn-root/fallcache/internal/envelope"
)

// ErrNotCounter is returned by Increment when the stored value is not an
// integer counter.
var ErrNotCounter = errors.New("bigcache backend: value is not a counter")

type BigCache struct {
	c *bc.BigCache

	incMu sync.Mutex // serializes Increment read-modify-write
}

var _ be.Backend = (*BigCache)(nil)

type Config struct {
	// LifeWindow is bigcache's global retention; entries older than it are
	// evicted regardless of their own expiry. Should exceed the largest TTL
	// the cache will carry.
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*BigCache, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c}, nil
}

func (b *BigCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	return b.c.Set(key, envelope.Encode(value, expiresAt))
}

func (b *BigCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	payload, expiresAt, err := envelope.Decode(raw)
	if err != nil {
		// self-heal corrupt
		_ = b.c.Delete(key)
		return nil, false, nil
	}
	if envelope.Expired(expiresAt, time.Now()) {
		_ = b.c.Delete(key)
		return nil, false, nil
	}
	return payload, true, nil
}

func (b *BigCache) Delete(_ context.Context, key string) error {
	err := b.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (b *BigCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *BigCache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	b.incMu.Lock()
	defer b.incMu.Unlock()

	cur := int64(0)
	keepExpiry := time.Time{}
	if raw, err := b.c.Get(key); err == nil {
		payload, expiresAt, derr := envelope.Decode(raw)
		if derr == nil && !envelope.Expired(expiresAt, time.Now()) {
			v, perr := strconv.ParseInt(string(payload), 10, 64)
			if perr != nil {
				return 0, ErrNotCounter
			}
			cur = v
			keepExpiry = expiresAt
		}
	} else if !errors.Is(err, bc.ErrEntryNotFound) {
		return 0, err
	}

	expiresAt := keepExpiry
	if keepExpiry.IsZero() && cur == 0 && ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	next := cur + delta
	payload := []byte(strconv.FormatInt(next, 10))
	if err := b.c.Set(key, envelope.Encode(payload, expiresAt)); err != nil {
		return 0, err
	}
	return next, nil
}

// Flush drops every entry. The instance is owned by a single namespace.
func (b *BigCache) Flush(context.Context, string) error {
	return b.c.Reset()
}

func (b *BigCache) Close(context.Context) error {
	return b.c.Close()
}
