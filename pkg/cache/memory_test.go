package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := m.Set(ctx, "quote:AAPL", `{"price":190.5}`, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := m.Get(ctx, "quote:AAPL")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if value != `{"price":190.5}` {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "quote:MSFT", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	if _, ok, _ := m.Get(ctx, "quote:MSFT"); ok {
		t.Fatal("expected entry to expire")
	}
	if exists, _ := m.Exists(ctx, "quote:MSFT"); exists {
		t.Fatal("expired entry still reported by Exists")
	}
}

func TestMemoryEvictsOldestAtCap(t *testing.T) {
	m := NewMemory(WithMaxEntries(2))
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "a", "1", 0); err != nil {
		t.Fatalf("set a: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := m.Set(ctx, "b", "2", 0); err != nil {
		t.Fatalf("set b: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be present")
	}
	if err := m.Set(ctx, "c", "3", 0); err != nil {
		t.Fatalf("set c: %v", err)
	}

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Fatal("expected least recently used entry to be evicted")
	}
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("recently touched entry was evicted")
	}
	if _, ok, _ := m.Get(ctx, "c"); !ok {
		t.Fatal("new entry missing after eviction")
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	_ = m.Set(ctx, "x", "1", 0)
	_ = m.Set(ctx, "y", "2", 0)
	if err := m.Delete(ctx, "x", "y", "z"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if exists, _ := m.Exists(ctx, "x"); exists {
		t.Fatal("deleted entry still present")
	}
}

func TestKey(t *testing.T) {
	if got := Key("quote", "AAPL"); got != "quote:AAPL" {
		t.Fatalf("unexpected key %q", got)
	}
}
