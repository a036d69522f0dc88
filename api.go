package fallcache

import (
	"context"
	"time"

	be "github.com/unkn0wn-root/fallcache/backend"
)

// NoExpiry requests an entry without expiration. A ttl of 0 means "use the
// manager's default TTL".
const NoExpiry time.Duration = -1

// Generator produces a value on a Remember miss.
type Generator func(ctx context.Context) ([]byte, error)

// Manager is the byte-level cache façade. All keys are namespaced with the
// configured prefix before they reach a backend.
type Manager interface {
	// Set stores value under key. Backend unavailability is absorbed by the
	// fallback; a lock-timeout write is skipped (fail open) and reported as
	// success. An error means even the fallback could not store the value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get never fails: expired, corrupt, and unreachable all read as a miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a live entry is cached under key.
	Exists(ctx context.Context, key string) bool

	// Remember returns the cached value for key, or invokes gen exactly once,
	// stores the result best-effort, and returns it. The only error surfaced
	// is gen's own. Concurrent callers on a cold key may both invoke gen;
	// last write wins.
	Remember(ctx context.Context, key string, ttl time.Duration, gen Generator) ([]byte, error)

	// SetMultiple stores each entry individually; one failed key never
	// blocks the others. Failures are reported per key via *BatchError.
	SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// GetMultiple returns the live entries among keys; missing keys are
	// simply absent from the result.
	GetMultiple(ctx context.Context, keys []string) map[string][]byte

	// Increment atomically adds delta to the counter under key, initializing
	// an absent counter to delta with the given TTL. Unlike Get/Set, an
	// increment that cannot be applied atomically is a hard error.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Flush removes every entry under the manager's prefix.
	Flush(ctx context.Context) error

	// Degraded reports whether the manager has switched to the fallback.
	Degraded() bool

	// Reset re-adopts the preferred backend after an operator decided it has
	// recovered. Recovery is never automatic.
	Reset()

	Close(ctx context.Context) error
}

// Options tune the manager. Only Preferred is required.
type Options struct {
	// Preferred is the backend used while healthy.
	Preferred be.Backend

	// Fallback is engaged after the first failed operation against
	// Preferred and used for the rest of the process lifetime. Usually the
	// persistent (SQLite) backend. When nil, failures stay with Preferred.
	Fallback be.Backend

	// Prefix is prepended to every logical key, fixed for the manager's
	// lifetime, so independent consumers can share one backend.
	Prefix string

	// DefaultTTL applies when Set/Remember are called with ttl == 0.
	// 0 => 10 minutes. Use NoExpiry on a call to store without expiration.
	DefaultTTL time.Duration

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

// New builds a Manager from explicit options. The backend choice is resolved
// here, once; there is no per-call strategy dispatch.
func New(opts Options) (Manager, error) {
	return newManager(opts)
}
