package fallcache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	be "github.com/unkn0wn-root/fallcache/backend"
	bbig "github.com/unkn0wn-root/fallcache/backend/bigcache"
	bfile "github.com/unkn0wn-root/fallcache/backend/file"
	bredis "github.com/unkn0wn-root/fallcache/backend/redis"
	bris "github.com/unkn0wn-root/fallcache/backend/ristretto"
	bsql "github.com/unkn0wn-root/fallcache/backend/sqlite"
)

// Kind selects a storage strategy. It is resolved exactly once, inside Open,
// into concrete backend instances; no operation dispatches on it afterwards.
type Kind int

const (
	// KindMemory is a fast key/value store: an external Redis when an
	// address is configured, an in-process cache otherwise.
	KindMemory Kind = iota + 1
	// KindPersistent is the durable SQLite table. Always available; also
	// serves as the fallback for the other kinds.
	KindPersistent
	// KindFile stores one file per key on the local filesystem. For
	// low-traffic and development use.
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindPersistent:
		return "persistent"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts a configuration tag into a Kind. Intended for loading
// config files at startup; the result is resolved once by Open.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "memory":
		return KindMemory, nil
	case "persistent":
		return KindPersistent, nil
	case "file":
		return KindFile, nil
	default:
		return 0, fmt.Errorf("fallcache: unknown backend kind %q", s)
	}
}

// MemoryConfig configures the KindMemory backend.
type MemoryConfig struct {
	// RedisAddr selects the external cache service. When empty, an
	// in-process store is used instead.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Timeout bounds every call to the service. The backend client owns
	// this bound; the manager never adds its own. 0 => 2s.
	Timeout time.Duration

	// InProcess selects the in-process engine when RedisAddr is empty.
	InProcess InProcessEngine
	// MaxCostBytes caps in-process memory use. 0 => 64 MiB.
	MaxCostBytes int64
}

// InProcessEngine picks the in-process memory store implementation.
type InProcessEngine int

const (
	// EngineRistretto (default) has native per-entry TTLs and admission
	// control; best for mixed workloads.
	EngineRistretto InProcessEngine = iota
	// EngineBigCache avoids GC pressure for very large entry counts.
	EngineBigCache
)

// PersistentConfig configures the KindPersistent backend (and the implicit
// fallback built for the other kinds).
type PersistentConfig struct {
	// Path of the SQLite database file. Empty => in-memory (tests only).
	Path string
	// SweepInterval enables background reclamation of expired rows.
	SweepInterval time.Duration
	// QueryTimeout bounds each statement. 0 => 5s.
	QueryTimeout time.Duration
}

// FileConfig configures the KindFile backend.
type FileConfig struct {
	Dir      string
	LockWait time.Duration
}

// Config is the explicit construction contract: everything the manager needs
// arrives here, no process-wide configuration is consulted.
type Config struct {
	Kind       Kind
	Prefix     string
	DefaultTTL time.Duration

	Memory     MemoryConfig
	Persistent PersistentConfig
	File       FileConfig

	Logger Logger
	Hooks  Hooks
}

// Open resolves cfg.Kind into concrete backends and returns a Manager. The
// persistent backend is always constructed: for KindPersistent it is the
// preferred backend, otherwise it is the fallback of last resort.
func Open(ctx context.Context, cfg Config) (Manager, error) {
	persistent, err := bsql.New(ctx, bsql.Config{
		Path:          cfg.Persistent.Path,
		QueryTimeout:  cfg.Persistent.QueryTimeout,
		SweepInterval: cfg.Persistent.SweepInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("fallcache: persistent backend: %w", err)
	}

	var preferred be.Backend
	var fallback be.Backend

	switch cfg.Kind {
	case KindPersistent:
		preferred = persistent

	case KindMemory:
		preferred, err = openMemory(cfg.Memory)
		if err != nil {
			_ = persistent.Close(ctx)
			return nil, err
		}
		fallback = persistent

	case KindFile:
		preferred, err = bfile.New(bfile.Config{
			Dir:      cfg.File.Dir,
			LockWait: cfg.File.LockWait,
		})
		if err != nil {
			_ = persistent.Close(ctx)
			return nil, fmt.Errorf("fallcache: file backend: %w", err)
		}
		fallback = persistent

	default:
		_ = persistent.Close(ctx)
		return nil, fmt.Errorf("fallcache: unknown backend kind %v", cfg.Kind)
	}

	return New(Options{
		Preferred:  preferred,
		Fallback:   fallback,
		Prefix:     cfg.Prefix,
		DefaultTTL: cfg.DefaultTTL,
		Logger:     cfg.Logger,
		Hooks:      cfg.Hooks,
	})
}

func openMemory(cfg MemoryConfig) (be.Backend, error) {
	if cfg.RedisAddr != "" {
		timeout := coalesce[time.Duration](cfg.Timeout, 2*time.Second)
		client := goredis.NewClient(&goredis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		})
		return bredis.New(bredis.Config{Client: client, CloseClient: true})
	}

	maxCost := coalesce[int64](cfg.MaxCostBytes, 64<<20)
	if cfg.InProcess == EngineBigCache {
		b, err := bbig.New(bbig.Config{
			LifeWindow:         24 * time.Hour,
			HardMaxCacheSizeMB: int(maxCost >> 20),
		})
		if err != nil {
			return nil, fmt.Errorf("fallcache: bigcache backend: %w", err)
		}
		return b, nil
	}

	b, err := bris.New(bris.Config{
		NumCounters: 1_000_000,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("fallcache: ristretto backend: %w", err)
	}
	return b, nil
}
