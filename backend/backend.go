// Package backend defines the storage abstraction used by fallcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// or appended metadata visible to callers, no re-encoding, no mutation).
// Stores without native per-entry TTLs may frame values internally, but the
// framing must be fully reversed on Get.
//
// The key namespace handed to a backend is owned by the fallcache manager
// that constructed it. External code MUST NOT write values under the
// manager's prefix; foreign writes may be treated as corruption and deleted.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned by a backend Set or Increment when a bounded
// wait for an exclusive write lock failed. The façade treats it as a
// fail-open signal (skip the write), not as backend unavailability.
var ErrLockTimeout = errors.New("backend: write lock timeout")

// Backend is a minimal byte store with TTLs. Must be safe for concurrent use.
// A ttl <= 0 means the entry has no expiration. Entries whose TTL has passed
// are logically absent: Get and Exists perform a lazy expiry check and report
// a miss even when the entry is still physically present.
type Backend interface {
	// Set stores value under key. Any returned error other than
	// ErrLockTimeout indicates the backend is unavailable for writes.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns (value, true, nil) on a live hit and (nil, false, nil) on
	// a miss, including expired and unparsable entries. IO/remote errors are
	// returned as (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a live (unexpired) entry is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Increment atomically adds delta to the integer counter stored under
	// key and returns the new value. An absent or expired counter is
	// initialized to delta with the given TTL. Concurrent increments must
	// never lose an update.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Flush removes all entries owned by the given key prefix. Backends
	// whose whole store belongs to a single namespace (in-process and
	// filesystem stores) may clear everything regardless of prefix.
	Flush(ctx context.Context, prefix string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
