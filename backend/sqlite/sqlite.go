// Package sqlite implements the fallcache backend contract on a durable
// SQLite table. It is the fallback of last resort: no external service, no
// index limit on key count, and SQLite's own locking covers concurrent
// readers and writers across processes.
//
// One row per entry: (key TEXT PRIMARY KEY, value BLOB, expires_at INTEGER).
// expires_at is unix nanoseconds; 0 means no expiry. Expired rows are
// deleted lazily on read; an optional background sweeper reclaims space.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	be "github.com/unkn0wn-root/fallcache/backend"
)

const defaultQueryTimeout = 5 * time.Second

// ErrNotCounter is returned by Increment when the stored value is not an
// integer counter.
var ErrNotCounter = errors.New("sqlite backend: value is not a counter")

type SQLite struct {
	db           *sql.DB
	queryTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var _ be.Backend = (*SQLite)(nil)

type Config struct {
	// Path to the database file. Empty or ":memory:" uses an in-memory
	// database (useful for tests).
	Path string
	// QueryTimeout bounds each statement; 0 => 5s. A statement that exceeds
	// it fails like any other backend error.
	QueryTimeout time.Duration
	// SweepInterval enables a background cleanup of expired rows when > 0.
	// Lazy eviction on read keeps results correct without it; the sweeper
	// only reclaims space.
	SweepInterval time.Duration
}

func New(ctx context.Context, cfg Config) (*SQLite, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers, which makes the Increment upsert atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at
		ON cache_entries(expires_at)`); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db, queryTimeout: cfg.QueryTimeout}
	if s.queryTimeout <= 0 {
		s.queryTimeout = defaultQueryTimeout
	}

	if cfg.SweepInterval > 0 {
		sweepCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go s.sweep(sweepCtx, cfg.SweepInterval)
	}
	return s, nil
}

func (s *SQLite) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(qctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	return err
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expiresAt > 0 && expiresAt < time.Now().UnixNano() {
		// Lazy eviction: delete-then-miss.
		_, _ = s.db.ExecContext(qctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(qctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(qctx,
		`SELECT 1 FROM cache_entries WHERE key = ? AND (expires_at = 0 OR expires_at >= ?)`,
		key, time.Now().UnixNano(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Increment is a read-validate-write inside one transaction; the single
// connection serializes writers, so the sequence is atomic. An absent
// counter starts at delta with the given TTL; an expired counter is reset
// the same way; a live counter is bumped and keeps its window. A row that
// holds non-counter bytes fails with ErrNotCounter instead of being
// coerced to 0 and silently restarted.
func (s *SQLite) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(qctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	var cur int64
	var expiresAt int64
	fresh := false

	var value []byte
	err = tx.QueryRowContext(qctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	switch {
	case err == sql.ErrNoRows:
		fresh = true
	case err != nil:
		return 0, err
	case expiresAt > 0 && expiresAt < now.UnixNano():
		fresh = true
	default:
		cur, err = strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return 0, ErrNotCounter
		}
	}
	if fresh {
		expiresAt = 0
		if ttl > 0 {
			expiresAt = now.Add(ttl).UnixNano()
		}
	}

	next := cur + delta
	if _, err := tx.ExecContext(qctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, strconv.FormatInt(next, 10), expiresAt,
	); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *SQLite) Flush(ctx context.Context, prefix string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(qctx,
		`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%")
	return err
}

func (s *SQLite) Close(context.Context) error {
	var dbErr error
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			s.wg.Wait()
		}
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *SQLite) sweep(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.db.Exec(
				`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < ?`,
				time.Now().UnixNano())
		}
	}
}

// escapeLike makes a literal prefix safe inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
