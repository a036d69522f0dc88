// Package file implements the fallcache backend contract with one file per
// key under a configured root directory. Each file holds the payload framed
// with its expiry (internal/envelope); filenames are derived from the
// namespaced key by hash, so arbitrary keys stay filesystem-safe.
//
// Writes take an exclusive advisory lock (gofrs/flock) per key for the
// duration of the write. Reads never block on the lock: a concurrently
// in-progress or torn write decodes as corrupt and reads as a miss.
//
// Not suitable for high-concurrency production traffic. Intended for
// low-traffic or development setups where neither a cache service nor a
// database is available.
package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	be "github.com/unkn0wn-root/fallcache/backend"
	"github.com/unkn0wn-root/fallcache/internal/envelope"
	"github.com/unkn0wn-root/fallcache/internal/keys"
)

const (
	defaultLockWait = 2 * time.Second
	lockRetry       = 25 * time.Millisecond

	dataSuffix = ".cache"
	lockSuffix = ".lock"
)

// ErrNotCounter is returned by Increment when the stored value is not an
// integer counter.
var ErrNotCounter = errors.New("file backend: value is not a counter")

type File struct {
	dir      string
	lockWait time.Duration
}

var _ be.Backend = (*File)(nil)

type Config struct {
	// Dir is the root directory for cache files. Created if missing. The
	// directory is owned by one cache namespace; Flush clears its entries.
	Dir string
	// LockWait bounds the wait for the per-key write lock; 0 => 2s.
	// On timeout Set and Increment return backend.ErrLockTimeout.
	LockWait time.Duration
}

func New(cfg Config) (*File, error) {
	if cfg.Dir == "" {
		return nil, errors.New("file backend: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	f := &File{dir: cfg.Dir, lockWait: cfg.LockWait}
	if f.lockWait <= 0 {
		f.lockWait = defaultLockWait
	}
	return f, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, keys.FileName(key)+dataSuffix)
}

// lock acquires the exclusive per-key write lock within the bounded wait.
// The caller must Unlock the returned flock.
func (f *File) lock(ctx context.Context, key string) (*flock.Flock, error) {
	l := flock.New(filepath.Join(f.dir, keys.FileName(key)+lockSuffix))
	lctx, cancel := context.WithTimeout(ctx, f.lockWait)
	defer cancel()
	ok, err := l.TryLockContext(lctx, lockRetry)
	if err != nil || !ok {
		return nil, be.ErrLockTimeout
	}
	return l, nil
}

func (f *File) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l, err := f.lock(ctx, key)
	if err != nil {
		return err
	}
	defer l.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	return os.WriteFile(f.path(key), envelope.Encode(value, expiresAt), 0o644)
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	payload, expiresAt, err := envelope.Decode(b)
	if err != nil {
		// Torn or foreign write: self-heal and miss.
		_ = os.Remove(f.path(key))
		return nil, false, nil
	}
	if envelope.Expired(expiresAt, time.Now()) {
		_ = os.Remove(f.path(key))
		return nil, false, nil
	}
	return payload, true, nil
}

func (f *File) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := f.Get(ctx, key)
	return ok, err
}

// Increment performs the read-modify-write under the exclusive per-key lock,
// which is what makes it atomic for this backend.
func (f *File) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	l, err := f.lock(ctx, key)
	if err != nil {
		return 0, err
	}
	defer l.Unlock()

	cur := int64(0)
	keepExpiry := time.Time{}
	if b, err := os.ReadFile(f.path(key)); err == nil {
		payload, expiresAt, derr := envelope.Decode(b)
		if derr == nil && !envelope.Expired(expiresAt, time.Now()) {
			v, perr := strconv.ParseInt(string(payload), 10, 64)
			if perr != nil {
				return 0, ErrNotCounter
			}
			cur = v
			keepExpiry = expiresAt
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	next := cur + delta
	expiresAt := keepExpiry
	if keepExpiry.IsZero() && cur == 0 && ttl > 0 {
		// Fresh (or reset) counter: the window starts now.
		expiresAt = time.Now().Add(ttl)
	}

	payload := []byte(strconv.FormatInt(next, 10))
	if err := os.WriteFile(f.path(key), envelope.Encode(payload, expiresAt), 0o644); err != nil {
		return 0, err
	}
	return next, nil
}

// Flush removes every cache file under the root. The directory is
// namespace-owned, so the prefix argument is not needed to scope it.
//
// Lock files stay in place: removing one that a concurrent writer holds
// would let the next locker create a fresh inode, and two writers would
// each believe they hold the exclusive lock. They are empty files.
func (f *File) Flush(_ context.Context, _ string) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), dataSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (f *File) Close(context.Context) error { return nil }
