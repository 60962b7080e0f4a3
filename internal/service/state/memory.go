package state

import (
	"context"
	"sync"
	"time"

	domrepo "SignalGate/internal/domain/repository"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// MemoryStore keeps cooldowns, token buckets and the breaker flag in process
// memory behind one mutex, so check-and-mutate is atomic by construction.
// Expired cooldowns are dropped lazily on access; a stale entry never blocks
// an acquisition.
type MemoryStore struct {
	mu        sync.Mutex
	cooldowns map[string]time.Time // symbol -> expiry
	buckets   map[string]*bucket
	tripped   bool
	now       func() time.Time
}

var _ domrepo.StateStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cooldowns: make(map[string]time.Time),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

func (s *MemoryStore) TryAcquireCooldown(_ context.Context, symbol string, d time.Duration) (bool, error) {
	if d <= 0 {
		return true, nil
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.cooldowns[symbol]; ok && exp.After(now) {
		return false, nil
	}
	s.cooldowns[symbol] = now.Add(d)
	return true, nil
}

func (s *MemoryStore) ForceCooldown(_ context.Context, symbol string, d time.Duration) error {
	s.mu.Lock()
	s.cooldowns[symbol] = s.now().Add(d)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearCooldown(_ context.Context, symbol string) error {
	s.mu.Lock()
	delete(s.cooldowns, symbol)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CooldownRemaining(_ context.Context, symbol string) (time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.cooldowns[symbol]
	if !ok || !exp.After(now) {
		delete(s.cooldowns, symbol)
		return 0, nil
	}
	return exp.Sub(now), nil
}

// TryConsumeToken refills lazily and takes one token when available. Capacity
// and refill rate follow the call, so a reconfigure applies to live buckets.
func (s *MemoryStore) TryConsumeToken(_ context.Context, key string, capacity, refillPerSec float64) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		s.buckets[key] = b
	}
	b.capacity = capacity
	b.refillRate = refillPerSec
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		b.last = now
	}
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) TripBreaker(context.Context) error {
	s.mu.Lock()
	s.tripped = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ResetBreaker(context.Context) error {
	s.mu.Lock()
	s.tripped = false
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) BreakerTripped(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripped, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
