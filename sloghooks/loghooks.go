// Package sloghooks logs manager hook events through log/slog, with
// per-event sampling so a flapping backend cannot flood the log.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/fallcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	WriteSkipEvery uint64
	BatchErrEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	writeSkipCtr atomic.Uint64
	batchErrCtr  atomic.Uint64
}

var _ fallcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

// Degraded is never sampled: it fires at most once per process lifetime and
// is the single most important event the cache emits.
func (h *Hooks) Degraded(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("fallcache.degraded", "err", err)
}

func (h *Hooks) WriteSkipped(key, reason string) {
	if h.l == nil || !sample(h.opts.WriteSkipEvery, &h.writeSkipCtr) {
		return
	}
	h.l.Warn("fallcache.write_skipped",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) BatchKeyError(key string, err error) {
	if h.l == nil || !sample(h.opts.BatchErrEvery, &h.batchErrCtr) {
		return
	}
	h.l.Warn("fallcache.batch_key_error",
		"key", h.redact(key),
		"err", err)
}
