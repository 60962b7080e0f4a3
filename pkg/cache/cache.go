// Package cache provides the read-through cache backends used for market
// quote snapshots: a process-local in-memory store, a shared Redis store,
// and a layered combination of the two.
//
// Values are opaque strings. Callers that cache structured data marshal it
// to JSON before Set and unmarshal after Get, which keeps every backend
// interchangeable.
package cache

import (
	"context"
	"time"
)

// Store is the contract shared by all cache backends. A missing or expired
// key is not an error: Get reports it through the ok flag so callers can
// fall through to the upstream source without inspecting error values.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Key joins a namespace prefix and an identifier into a cache key,
// e.g. Key("quote", "AAPL") -> "quote:AAPL".
func Key(prefix, id string) string {
	return prefix + ":" + id
}
