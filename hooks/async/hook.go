// Package asynchook decouples hook delivery from the cache's hot path: events
// are queued to a worker pool and dropped when the queue is full, so a slow
// hook sink can never stall a cache operation.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    WriteSkipEvery: 10, // sample logs: ~every 10th skipped write
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	mgr, _ := fallcache.New(fallcache.Options{
//	    Preferred: backend,
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/fallcache"
)

type Hooks struct {
	inner fallcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ fallcache.Hooks = (*Hooks)(nil)

func New(inner fallcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Degraded(err error)            { h.try(func() { h.inner.Degraded(err) }) }
func (h *Hooks) WriteSkipped(key, r string)    { h.try(func() { h.inner.WriteSkipped(key, r) }) }
func (h *Hooks) BatchKeyError(k string, e error) { h.try(func() { h.inner.BatchKeyError(k, e) }) }
