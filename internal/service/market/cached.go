package market

import (
	"context"
	"encoding/json"
	"time"

	"SignalGate/internal/domain/models"
	domsvc "SignalGate/internal/domain/service"
	pkgcache "SignalGate/pkg/cache"
)

// Cached wraps a MarketData source with a short per-symbol TTL so a burst of
// candidates on one symbol costs one upstream lookup. Quotes are stored as
// JSON strings, the one value shape every cache backend round-trips
// unchanged. Misses are not cached: a symbol gaining data becomes visible
// immediately.
type Cached struct {
	inner domsvc.MarketData
	store pkgcache.Store
	ttl   time.Duration
}

// NewCached builds the caching wrapper. A nil store falls back to a
// process-local memory cache.
func NewCached(inner domsvc.MarketData, store pkgcache.Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if store == nil {
		store = pkgcache.NewMemory()
	}
	return &Cached{inner: inner, store: store, ttl: ttl}
}

func (m *Cached) Snapshot(ctx context.Context, symbol string) (*models.Quote, error) {
	key := pkgcache.Key("quote", symbol)

	if raw, ok, _ := m.store.Get(ctx, key); ok {
		var q models.Quote
		if json.Unmarshal([]byte(raw), &q) == nil {
			return &q, nil
		}
	}

	// Cache miss, or the cache backend is unreachable. Either way the
	// upstream answer decides admission.
	q, err := m.inner.Snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if q != nil {
		if b, merr := json.Marshal(q); merr == nil {
			_ = m.store.Set(ctx, key, string(b), m.ttl)
		}
	}
	return q, nil
}

var _ domsvc.MarketData = (*Cached)(nil)
