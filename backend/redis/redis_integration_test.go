//go:build integration

package redis

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func testBackend(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	b, err := New(Config{Client: client, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestRedisRoundTrip(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()
	key := "fallcache:test:" + t.Name()

	if err := b.Set(ctx, key, []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := b.Get(ctx, key)
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := b.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := b.Get(ctx, key); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisIncrementConcurrent(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()
	key := "fallcache:test:" + t.Name()
	defer b.Delete(ctx, key)

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := b.Increment(ctx, key, 1, time.Minute); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := b.Increment(ctx, key, 0, time.Minute)
	if err != nil {
		t.Fatalf("Increment(0): %v", err)
	}
	if v != n {
		t.Fatalf("counter = %d, want %d", v, n)
	}
}

func TestRedisFlushPrefixScoped(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()
	prefix := "fallcache:test:flush:"
	other := "fallcache:test:other:" + t.Name()

	_ = b.Set(ctx, prefix+"a", []byte("1"), time.Minute)
	_ = b.Set(ctx, prefix+"b", []byte("2"), time.Minute)
	_ = b.Set(ctx, other, []byte("3"), time.Minute)
	defer b.Delete(ctx, other)

	if err := b.Flush(ctx, prefix); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok, _ := b.Get(ctx, prefix+"a"); ok {
		t.Fatal("prefixed key survived flush")
	}
	if _, ok, _ := b.Get(ctx, other); !ok {
		t.Fatal("unprefixed key was flushed")
	}
}
