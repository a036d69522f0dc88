package fallcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/fallcache/codec"
)

func newTestGrouped(t *testing.T, cfg GroupedConfig) (*Grouped[string], Manager) {
	t.Helper()
	m := newTestManager(t, nil)
	return NewGrouped[string](m, codec.String{}, cfg), m
}

func TestGrouped_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGrouped(t, GroupedConfig{Prefix: "routes"})

	if err := g.Set(ctx, "header", "<nav/>", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := g.Get(ctx, "header")
	if !ok || v != "<nav/>" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
}

func TestGrouped_LocaleDimension(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	en := NewGrouped[string](m, codec.String{}, GroupedConfig{Prefix: "pages", Locale: "en"})
	de := NewGrouped[string](m, codec.String{}, GroupedConfig{Prefix: "pages", Locale: "de"})

	en.Set(ctx, "home", "Welcome", time.Minute)
	de.Set(ctx, "home", "Willkommen", time.Minute)

	if v, _ := en.Get(ctx, "home"); v != "Welcome" {
		t.Fatalf("en = %q", v)
	}
	if v, _ := de.Get(ctx, "home"); v != "Willkommen" {
		t.Fatalf("de = %q", v)
	}
}

func TestGrouped_FlushGroupIsolation(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGrouped(t, GroupedConfig{Prefix: "frag"})

	g.Set(ctx, "a", "1", time.Minute)
	g.Set(ctx, "b", "2", time.Minute)

	if err := g.FlushGroup(ctx, "a"); err != nil {
		t.Fatalf("FlushGroup: %v", err)
	}
	if _, ok := g.Get(ctx, "a"); ok {
		t.Fatal("flushed group still readable")
	}
	if v, ok := g.Get(ctx, "b"); !ok || v != "2" {
		t.Fatal("flush leaked into sibling group")
	}
}

func TestGrouped_FlushAll(t *testing.T) {
	ctx := context.Background()
	g, m := newTestGrouped(t, GroupedConfig{Prefix: "frag"})

	g.Set(ctx, "a", "1", time.Minute)
	g.Set(ctx, "b", "2", time.Minute)

	if err := g.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if _, ok := g.Get(ctx, "a"); ok {
		t.Fatal("group a survived FlushAll")
	}
	if _, ok := g.Get(ctx, "b"); ok {
		t.Fatal("group b survived FlushAll")
	}
	if _, ok := m.Get(ctx, "frag:__groups"); ok {
		t.Fatal("group index survived FlushAll")
	}
}

func TestGrouped_FlushAllSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	w1 := NewGrouped[string](m, codec.String{}, GroupedConfig{Prefix: "frag"})
	w2 := NewGrouped[string](m, codec.String{}, GroupedConfig{Prefix: "frag"})

	// Writes from a different view of the same backend land in the shared
	// index, so w1's FlushAll covers them.
	w2.Set(ctx, "other", "x", time.Minute)
	w1.Set(ctx, "mine", "y", time.Minute)

	if err := w1.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if _, ok := w2.Get(ctx, "other"); ok {
		t.Fatal("other writer's group survived FlushAll")
	}
}

func TestGrouped_Bypass(t *testing.T) {
	ctx := context.Background()
	g, m := newTestGrouped(t, GroupedConfig{Prefix: "dbg", Bypass: true})

	if err := g.Set(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := g.Get(ctx, "a"); ok {
		t.Fatal("bypass Get must always miss")
	}
	if _, ok := m.Get(ctx, "dbg:a"); ok {
		t.Fatal("bypass Set stored a value")
	}

	// Remember recomputes every time under bypass.
	calls := 0
	gen := func(context.Context) (string, error) { calls++; return "fresh", nil }
	g.Remember(ctx, "a", time.Minute, gen)
	g.Remember(ctx, "a", time.Minute, gen)
	if calls != 2 {
		t.Fatalf("generator called %d times under bypass, want 2", calls)
	}
}

func TestGrouped_BypassFlushStillWorks(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	live := NewGrouped[string](m, codec.String{}, GroupedConfig{Prefix: "frag"})
	dbg := NewGrouped[string](m, codec.String{}, GroupedConfig{Prefix: "frag", Bypass: true})

	live.Set(ctx, "a", "1", time.Minute)
	if err := dbg.FlushGroup(ctx, "a"); err != nil {
		t.Fatalf("FlushGroup under bypass: %v", err)
	}
	if _, ok := live.Get(ctx, "a"); ok {
		t.Fatal("bypass flush did not remove the entry")
	}
}
