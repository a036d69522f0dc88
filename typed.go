package fallcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/fallcache/codec"
)

// Typed binds a Manager to a value type via a codec. It keeps the manager's
// read semantics: anything that cannot be decoded reads as a miss, and the
// stale bytes are deleted so the next read repopulates.
type Typed[V any] struct {
	m Manager
	c codec.Codec[V]
}

// NewTyped wraps m with cod. The same manager can back several Typed views
// as long as their key spaces do not overlap.
func NewTyped[V any](m Manager, cod codec.Codec[V]) *Typed[V] {
	return &Typed[V]{m: m, c: cod}
}

func (t *Typed[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	b, err := t.c.Encode(value)
	if err != nil {
		return err
	}
	return t.m.Set(ctx, key, b, ttl)
}

func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	b, ok := t.m.Get(ctx, key)
	if !ok {
		return zero, false
	}
	v, err := t.c.Decode(b)
	if err != nil {
		// Self-heal: a corrupt entry would shadow fresh writes forever.
		_ = t.m.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

func (t *Typed[V]) Delete(ctx context.Context, key string) error {
	return t.m.Delete(ctx, key)
}

func (t *Typed[V]) Exists(ctx context.Context, key string) bool {
	return t.m.Exists(ctx, key)
}

// Remember returns the cached value for key, or computes it with gen, stores
// the result best-effort, and returns it. Encode failures surface as errors;
// a failed store does not.
func (t *Typed[V]) Remember(ctx context.Context, key string, ttl time.Duration, gen func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}
	v, err := gen(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	b, err := t.c.Encode(v)
	if err != nil {
		var zero V
		return zero, err
	}
	// Same store policy as Manager.Remember: the caller has their value.
	_ = t.m.Set(ctx, key, b, ttl)
	return v, nil
}
