package cache

import (
	"context"
	"time"
)

type layeredConfig struct {
	localTTL time.Duration
	localCap int
}

type LayeredOption func(*layeredConfig)

// WithLocalTTL bounds how long a Redis hit is kept in the local layer.
// Writes still use the caller's TTL in Redis; the local copy expires after
// min(ttl, localTTL) so patched upstream data is not served stale for long.
func WithLocalTTL(d time.Duration) LayeredOption {
	return func(c *layeredConfig) {
		if d > 0 {
			c.localTTL = d
		}
	}
}

// WithLocalCap caps the entry count of the local layer.
func WithLocalCap(n int) LayeredOption {
	return func(c *layeredConfig) {
		if n > 0 {
			c.localCap = n
		}
	}
}

// Layered combines a local Memory store with a shared Redis store. Reads
// try the local layer first and backfill it on a Redis hit; writes go to
// both. Redis errors degrade a read to a miss rather than failing it, so a
// Redis outage only costs the shared layer.
type Layered struct {
	local    *Memory
	shared   *Redis
	localTTL time.Duration
}

func NewLayered(shared *Redis, opts ...LayeredOption) *Layered {
	cfg := layeredConfig{
		localTTL: 2 * time.Second,
		localCap: 1000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Layered{
		local:    NewMemory(WithMaxEntries(cfg.localCap)),
		shared:   shared,
		localTTL: cfg.localTTL,
	}
}

func (l *Layered) capTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > l.localTTL {
		return l.localTTL
	}
	return ttl
}

func (l *Layered) Get(ctx context.Context, key string) (string, bool, error) {
	if value, ok, _ := l.local.Get(ctx, key); ok {
		return value, true, nil
	}

	value, ok, err := l.shared.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}

	_ = l.local.Set(ctx, key, value, l.localTTL)
	return value, true, nil
}

func (l *Layered) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_ = l.local.Set(ctx, key, value, l.capTTL(ttl))
	return l.shared.Set(ctx, key, value, ttl)
}

func (l *Layered) Delete(ctx context.Context, keys ...string) error {
	_ = l.local.Delete(ctx, keys...)
	return l.shared.Delete(ctx, keys...)
}

// Exists consults only the shared layer, which is the source of truth for
// replicas.
func (l *Layered) Exists(ctx context.Context, key string) (bool, error) {
	return l.shared.Exists(ctx, key)
}

func (l *Layered) Close() error {
	_ = l.local.Close()
	return l.shared.Close()
}
