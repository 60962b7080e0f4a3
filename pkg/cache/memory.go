package cache

import (
	"context"
	"sync"
	"time"
)

type memoryConfig struct {
	maxEntries    int
	sweepInterval time.Duration
}

type MemoryOption func(*memoryConfig)

// WithMaxEntries caps the number of live entries. Values below one keep
// the default cap.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithSweepInterval sets how often the background sweeper removes expired
// entries.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
	touchedAt time.Time
}

// Memory is an in-process Store. Entries expire lazily on read and are
// reclaimed by a background sweeper; when the entry cap is reached the
// least recently touched entry is evicted to make room.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemory builds an in-memory Store and starts its sweeper.
func NewMemory(opts ...MemoryOption) *Memory {
	cfg := memoryConfig{
		maxEntries:    1000,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: cfg.maxEntries,
		stop:       make(chan struct{}),
	}
	go m.sweeper(cfg.sweepInterval)
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}

	e.touchedAt = time.Now()
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}

	e := &memoryEntry{value: value, touchedAt: time.Now()}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// Close stops the sweeper. Entries remain readable but no longer age out
// in the background.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// evictOldest removes the least recently touched entry. Caller holds mu.
func (m *Memory) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, e := range m.entries {
		if oldestKey == "" || e.touchedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.touchedAt
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) sweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, e := range m.entries {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
