package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCooldownSingleWinnerUnderContention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	var wins int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryAcquireCooldown(ctx, "BTCUSDT", time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestCooldownLazyExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := s.TryAcquireCooldown(ctx, "ETHUSDT", 10*time.Minute); !ok {
		t.Fatalf("first acquire must win")
	}
	if ok, _ := s.TryAcquireCooldown(ctx, "ETHUSDT", 10*time.Minute); ok {
		t.Fatalf("second acquire inside the window must lose")
	}
	if rem, _ := s.CooldownRemaining(ctx, "ETHUSDT"); rem != 10*time.Minute {
		t.Fatalf("remaining: %v", rem)
	}

	now = now.Add(10*time.Minute + time.Second)
	if ok, _ := s.TryAcquireCooldown(ctx, "ETHUSDT", 10*time.Minute); !ok {
		t.Fatalf("acquire after expiry must win")
	}
}

func TestCooldownClearIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.ClearCooldown(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("clear on absent symbol: %v", err)
	}
	if _, err := s.TryAcquireCooldown(ctx, "BTCUSDT", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.ClearCooldown(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.ClearCooldown(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if ok, _ := s.TryAcquireCooldown(ctx, "BTCUSDT", time.Hour); !ok {
		t.Fatalf("acquire after clear must win")
	}
}

func TestForceCooldownOverridesActiveWindow(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := s.TryAcquireCooldown(ctx, "BTCUSDT", time.Minute); !ok {
		t.Fatalf("acquire must win")
	}
	if err := s.ForceCooldown(ctx, "BTCUSDT", time.Hour); err != nil {
		t.Fatalf("force: %v", err)
	}
	if rem, _ := s.CooldownRemaining(ctx, "BTCUSDT"); rem != time.Hour {
		t.Fatalf("force did not extend the window: %v", rem)
	}
}

func TestZeroDurationCooldownAlwaysAdmits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if ok, _ := s.TryAcquireCooldown(ctx, "BTCUSDT", 0); !ok {
			t.Fatalf("zero window must never block")
		}
	}
}

func TestTokenBucketBounds(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	// Full at creation: exactly capacity consumptions succeed.
	for i := 0; i < 3; i++ {
		ok, err := s.TryConsumeToken(ctx, "global", 3, 1)
		if err != nil || !ok {
			t.Fatalf("consume %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := s.TryConsumeToken(ctx, "global", 3, 1); ok {
		t.Fatalf("bucket must be empty after capacity consumptions")
	}

	// Refill accrues with elapsed time but never exceeds capacity.
	now = now.Add(2 * time.Second)
	if ok, _ := s.TryConsumeToken(ctx, "global", 3, 1); !ok {
		t.Fatalf("expected a refilled token")
	}
	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		if ok, _ := s.TryConsumeToken(ctx, "global", 3, 1); !ok {
			t.Fatalf("consume %d after long idle", i)
		}
	}
	if ok, _ := s.TryConsumeToken(ctx, "global", 3, 1); ok {
		t.Fatalf("idle refill overfilled past capacity")
	}
}

func TestTokenBucketNeverGoesNegativeUnderContention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const capacity = 10
	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryConsumeToken(ctx, "global", capacity, 0)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()
	if granted != capacity {
		t.Fatalf("granted %d tokens from a capacity-%d bucket", granted, capacity)
	}
}

func TestBreakerTripAndReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if tripped, _ := s.BreakerTripped(ctx); tripped {
		t.Fatalf("breaker must start reset")
	}
	if err := s.TripBreaker(ctx); err != nil {
		t.Fatalf("trip: %v", err)
	}
	if tripped, _ := s.BreakerTripped(ctx); !tripped {
		t.Fatalf("breaker not tripped")
	}
	// Last write wins regardless of current value.
	if err := s.TripBreaker(ctx); err != nil {
		t.Fatalf("re-trip: %v", err)
	}
	if err := s.ResetBreaker(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if tripped, _ := s.BreakerTripped(ctx); tripped {
		t.Fatalf("breaker not reset")
	}
}
