package fallcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/fallcache/codec"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestTyped_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tc := NewTyped[user](newTestManager(t, nil), codec.JSON[user]{})

	in := user{ID: "u1", Name: "Ada"}
	if err := tc.Set(ctx, "user:u1", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	out, ok := tc.Get(ctx, "user:u1")
	if !ok || out != in {
		t.Fatalf("Get = %+v, %v; want %+v", out, ok, in)
	}
	if !tc.Exists(ctx, "user:u1") {
		t.Fatal("Exists = false after Set")
	}
}

func TestTyped_CorruptEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	m := newTestManager(t, func(o *Options) { o.Preferred = mb })
	tc := NewTyped[user](m, codec.JSON[user]{})

	// Another writer left bytes the codec cannot parse.
	if err := m.Set(ctx, "user:u1", []byte("{not json"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := tc.Get(ctx, "user:u1"); ok {
		t.Fatal("corrupt entry decoded as a hit")
	}
	if mb.has("user:u1") {
		t.Fatal("corrupt entry was not removed")
	}
}

func TestTyped_Remember(t *testing.T) {
	ctx := context.Background()
	tc := NewTyped[user](newTestManager(t, nil), codec.JSON[user]{})

	calls := 0
	gen := func(context.Context) (user, error) {
		calls++
		return user{ID: "u2", Name: "Grace"}, nil
	}
	v, err := tc.Remember(ctx, "user:u2", time.Minute, gen)
	if err != nil || v.Name != "Grace" {
		t.Fatalf("Remember = %+v, %v", v, err)
	}
	v, err = tc.Remember(ctx, "user:u2", time.Minute, gen)
	if err != nil || v.Name != "Grace" {
		t.Fatalf("Remember (warm) = %+v, %v", v, err)
	}
	if calls != 1 {
		t.Fatalf("generator called %d times, want 1", calls)
	}
}

func TestTyped_MsgpackCodec(t *testing.T) {
	ctx := context.Background()
	tc := NewTyped[user](newTestManager(t, nil), codec.Msgpack[user]{})

	in := user{ID: "u3", Name: "Edsger"}
	if err := tc.Set(ctx, "user:u3", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	out, ok := tc.Get(ctx, "user:u3")
	if !ok || out != in {
		t.Fatalf("Get = %+v, %v; want %+v", out, ok, in)
	}
}
