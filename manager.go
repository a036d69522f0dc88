package fallcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	be "github.com/unkn0wn-root/fallcache/backend"
	"github.com/unkn0wn-root/fallcache/internal/keys"
)

const defaultTTL = 10 * time.Minute

type manager struct {
	preferred be.Backend
	fallback  be.Backend
	prefix    string
	ttl       time.Duration
	log       Logger
	hooks     Hooks

	degraded atomic.Bool
}

func newManager(opts Options) (*manager, error) {
	if opts.Preferred == nil {
		return nil, fmt.Errorf("fallcache: preferred backend is required")
	}

	m := &manager{
		preferred: opts.Preferred,
		fallback:  opts.Fallback,
		prefix:    opts.Prefix,
	}
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.ttl = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	return m, nil
}

func (m *manager) active() be.Backend {
	if m.degraded.Load() && m.fallback != nil {
		return m.fallback
	}
	return m.preferred
}

// failover marks the manager degraded and returns the fallback to retry on.
// Returns nil when there is nowhere to go. Degrade-once, stay-degraded: a
// preferred backend that recovers later is not re-adopted without Reset.
func (m *manager) failover(op string, err error) be.Backend {
	if m.fallback == nil {
		return nil
	}
	if m.degraded.CompareAndSwap(false, true) {
		m.log.Warn("preferred backend failed; degrading to fallback",
			Fields{"op": op, "err": err})
		m.hooks.Degraded(err)
	}
	return m.fallback
}

func (m *manager) resolveTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return m.ttl
	case ttl < 0: // NoExpiry
		return 0
	default:
		return ttl
	}
}

func (m *manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k := keys.Join(m.prefix, key)
	t := m.resolveTTL(ttl)

	b := m.active()
	err := b.Set(ctx, k, value, t)
	if err != nil && !errors.Is(err, be.ErrLockTimeout) && b != m.fallback {
		if fb := m.failover("set", err); fb != nil {
			err = fb.Set(ctx, k, value, t)
		}
	}
	// Checked after the failover retry: either backend may be the one with
	// bounded write locks.
	if errors.Is(err, be.ErrLockTimeout) {
		// Fail open: the caller's value passes through unset.
		m.log.Warn("cache write skipped: lock timeout", Fields{"key": key})
		m.hooks.WriteSkipped(key, "lock_timeout")
		return nil
	}
	return err
}

func (m *manager) Get(ctx context.Context, key string) ([]byte, bool) {
	k := keys.Join(m.prefix, key)

	b := m.active()
	v, ok, err := b.Get(ctx, k)
	if err != nil && b != m.fallback {
		if fb := m.failover("get", err); fb != nil {
			v, ok, err = fb.Get(ctx, k)
		}
	}
	if err != nil {
		m.log.Warn("cache get failed; treating as miss", Fields{"key": key, "err": err})
		return nil, false
	}
	return v, ok
}

func (m *manager) Delete(ctx context.Context, key string) error {
	k := keys.Join(m.prefix, key)

	b := m.active()
	err := b.Delete(ctx, k)
	if err != nil && b != m.fallback {
		if fb := m.failover("delete", err); fb != nil {
			err = fb.Delete(ctx, k)
		}
	}
	return err
}

func (m *manager) Exists(ctx context.Context, key string) bool {
	k := keys.Join(m.prefix, key)

	b := m.active()
	ok, err := b.Exists(ctx, k)
	if err != nil && b != m.fallback {
		if fb := m.failover("exists", err); fb != nil {
			ok, err = fb.Exists(ctx, k)
		}
	}
	if err != nil {
		m.log.Warn("cache exists failed; treating as miss", Fields{"key": key, "err": err})
		return false
	}
	return ok
}

func (m *manager) Remember(ctx context.Context, key string, ttl time.Duration, gen Generator) ([]byte, error) {
	if v, ok := m.Get(ctx, key); ok {
		return v, nil
	}
	v, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	// Best-effort store: the caller already has their value, so a failed
	// write must not fail the call.
	if err := m.Set(ctx, key, v, ttl); err != nil {
		m.log.Warn("remember: store failed", Fields{"key": key, "err": err})
	}
	return v, nil
}

func (m *manager) SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	var failed map[string]error
	for k, v := range items {
		if err := m.Set(ctx, k, v, ttl); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[k] = err
			m.hooks.BatchKeyError(k, err)
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (m *manager) GetMultiple(ctx context.Context, ks []string) map[string][]byte {
	out := make(map[string][]byte, len(ks))
	for _, k := range ks {
		if v, ok := m.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out
}

func (m *manager) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	k := keys.Join(m.prefix, key)
	t := m.resolveTTL(ttl)

	b := m.active()
	v, err := b.Increment(ctx, k, delta, t)
	if err != nil && !errors.Is(err, be.ErrLockTimeout) && b != m.fallback {
		if fb := m.failover("increment", err); fb != nil {
			v, err = fb.Increment(ctx, k, delta, t)
		}
	}
	if err != nil {
		// No fail-open here: an under-counted throttle is a correctness bug.
		// A lock timeout is excluded from failover for the same reason —
		// retrying on the fallback would restart the count at delta.
		return 0, fmt.Errorf("fallcache: increment %q: %w", key, err)
	}
	return v, nil
}

func (m *manager) Flush(ctx context.Context) error {
	b := m.active()
	err := b.Flush(ctx, m.prefix)
	if err != nil && b != m.fallback {
		if fb := m.failover("flush", err); fb != nil {
			err = fb.Flush(ctx, m.prefix)
		}
	}
	return err
}

func (m *manager) Degraded() bool { return m.degraded.Load() }

func (m *manager) Reset() {
	if m.degraded.CompareAndSwap(true, false) {
		m.log.Info("re-adopting preferred backend", nil)
	}
}

func (m *manager) Close(ctx context.Context) error {
	err := m.preferred.Close(ctx)
	if m.fallback != nil && m.fallback != m.preferred {
		if ferr := m.fallback.Close(ctx); err == nil {
			err = ferr
		}
	}
	return err
}
