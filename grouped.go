package fallcache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/fallcache/codec"
)

// GroupedConfig tunes a Grouped view.
type GroupedConfig struct {
	// Prefix namespaces all group entries of this view, e.g. "routes".
	Prefix string

	// Locale is an optional extra key dimension. When set, the same group
	// name resolves to distinct entries per locale.
	Locale string

	// Bypass short-circuits the cache: every Get misses and every Set is a
	// no-op, so callers always see freshly generated data. Flushes still
	// work. Set it from explicit configuration (a debug flag), never from
	// environment sniffing inside this package.
	Bypass bool

	// TTL applies to Set calls; 0 defers to the manager's default.
	TTL time.Duration
}

// Grouped caches one value per named group, e.g. a rendered fragment per
// page section. It tracks the groups it has written in a persisted index
// entry so FlushAll covers groups written by other processes sharing the
// same backend.
type Grouped[V any] struct {
	m   Manager
	c   codec.Codec[V]
	cfg GroupedConfig
}

// NewGrouped builds a grouped view over m using cod for values. The group
// index is encoded with msgpack regardless of cod.
func NewGrouped[V any](m Manager, cod codec.Codec[V], cfg GroupedConfig) *Grouped[V] {
	return &Grouped[V]{m: m, c: cod, cfg: cfg}
}

func (g *Grouped[V]) key(group string) string {
	k := g.cfg.Prefix + ":" + group
	if g.cfg.Locale != "" {
		k += ":" + g.cfg.Locale
	}
	return k
}

func (g *Grouped[V]) indexKey() string {
	return g.cfg.Prefix + ":__groups"
}

// Get returns the cached value for group. In bypass mode it always misses.
func (g *Grouped[V]) Get(ctx context.Context, group string) (V, bool) {
	var zero V
	if g.cfg.Bypass {
		return zero, false
	}
	b, ok := g.m.Get(ctx, g.key(group))
	if !ok {
		return zero, false
	}
	v, err := g.c.Decode(b)
	if err != nil {
		_ = g.m.Delete(ctx, g.key(group))
		return zero, false
	}
	return v, true
}

// Set stores value under group and records the group in the index. In
// bypass mode it is a no-op.
func (g *Grouped[V]) Set(ctx context.Context, group string, value V, ttl time.Duration) error {
	if g.cfg.Bypass {
		return nil
	}
	b, err := g.c.Encode(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = g.cfg.TTL
	}
	if err := g.m.Set(ctx, g.key(group), b, ttl); err != nil {
		return err
	}
	g.recordGroup(ctx, group)
	return nil
}

// Remember returns the cached value for group or computes and stores it.
// Bypass mode always recomputes and never stores.
func (g *Grouped[V]) Remember(ctx context.Context, group string, ttl time.Duration, gen func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := g.Get(ctx, group); ok {
		return v, nil
	}
	v, err := gen(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if !g.cfg.Bypass {
		_ = g.Set(ctx, group, v, ttl)
	}
	return v, nil
}

// FlushGroup removes group's entry. Other groups are untouched. Works in
// bypass mode too, so a debug session can still invalidate stale data.
func (g *Grouped[V]) FlushGroup(ctx context.Context, group string) error {
	return g.m.Delete(ctx, g.key(group))
}

// FlushAll removes every group recorded in the index, then the index itself.
func (g *Grouped[V]) FlushAll(ctx context.Context) error {
	groups := g.loadIndex(ctx)
	var first error
	for _, grp := range groups {
		if err := g.m.Delete(ctx, g.key(grp)); err != nil && first == nil {
			first = err
		}
	}
	if err := g.m.Delete(ctx, g.indexKey()); err != nil && first == nil {
		first = err
	}
	return first
}

// recordGroup merges group into the persisted index. Concurrent writers can
// lose each other's update (read-modify-write without a lock); the index is
// advisory and repopulates on the next Set, same trade as Remember's
// double-compute.
func (g *Grouped[V]) recordGroup(ctx context.Context, group string) {
	groups := g.loadIndex(ctx)
	for _, grp := range groups {
		if grp == group {
			return
		}
	}
	groups = append(groups, group)
	b, err := msgpack.Marshal(groups)
	if err != nil {
		return
	}
	_ = g.m.Set(ctx, g.indexKey(), b, NoExpiry)
}

func (g *Grouped[V]) loadIndex(ctx context.Context) []string {
	b, ok := g.m.Get(ctx, g.indexKey())
	if !ok {
		return nil
	}
	var groups []string
	if err := msgpack.Unmarshal(b, &groups); err != nil {
		_ = g.m.Delete(ctx, g.indexKey())
		return nil
	}
	return groups
}
