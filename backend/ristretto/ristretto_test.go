package ristretto

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestBackend(t *testing.T) *Ristretto {
	t.Helper()
	b, err := New(Config{NumCounters: 10_000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := b.Set(ctx, "k", []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b.Wait()

	v, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	b.Wait()
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Set(ctx, "k", []byte("v"), 30*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b.Wait()
	time.Sleep(50 * time.Millisecond)

	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("expired entry should miss")
	}
}

func TestIncrementConcurrent(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := b.Increment(ctx, "counter", 1, time.Minute); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := b.Increment(ctx, "counter", 0, time.Minute)
	if err != nil {
		t.Fatalf("Increment(0): %v", err)
	}
	if v != n {
		t.Fatalf("counter = %d, want %d", v, n)
	}
}

func TestIncrementRejectsNonCounter(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.Set(ctx, "k", []byte("nope"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b.Wait()
	if _, err := b.Increment(ctx, "k", 1, time.Minute); !errors.Is(err, ErrNotCounter) {
		t.Fatalf("expected ErrNotCounter, got %v", err)
	}
}

func TestFlush(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_ = b.Set(ctx, "a", []byte("1"), 0)
	_ = b.Set(ctx, "b", []byte("2"), 0)
	b.Wait()

	if err := b.Flush(ctx, ""); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "a"); ok {
		t.Fatal("entry survived flush")
	}
}
