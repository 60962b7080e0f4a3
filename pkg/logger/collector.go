package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated log entries to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig wires error-level logs into an out-of-band operator
// feed. Entries are deduplicated by content hash and shipped in batches,
// so a repeating failure shows up as one entry with a count instead of a
// flood.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush cadence
	CountThreshold int           // unique entries that force an early flush
	Topic          string
	Publisher      Publisher
}

// Entry is one deduplicated log line within a shipped batch.
type Entry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields"`
	Caller    string         `json:"caller"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
}

type Collector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	pending map[string]*Entry

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newCollector(cfg *CollectionConfig) *Collector {
	c := &Collector{
		cfg:     *cfg,
		pending: make(map[string]*Entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if c.cfg.TimeInterval <= 0 {
		c.cfg.TimeInterval = 30 * time.Second
	}
	if c.cfg.CountThreshold <= 0 {
		c.cfg.CountThreshold = 100
	}

	go c.loop()
	return c
}

// Record folds one log line into the pending batch. Reaching the count
// threshold flushes immediately; otherwise the ticker does.
func (c *Collector) Record(level, message string, fields []Field, caller string) {
	fieldMap := make(map[string]any, len(fields))
	for _, f := range fields {
		k, v := f.pair()
		fieldMap[k] = v
	}

	key := entryKey(level, message, fieldMap, caller)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &Entry{
			Level:     level,
			Message:   message,
			Fields:    fieldMap,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []Entry
	if len(c.pending) >= c.cfg.CountThreshold {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		go c.ship(batch)
	}
}

// Close flushes whatever is pending and stops the ticker. The final
// flush runs synchronously so a shutting-down process does not drop it.
func (c *Collector) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// entryKey hashes the full content of a line. json.Marshal sorts map
// keys, which keeps the hash stable across field orderings.
func entryKey(level, message string, fields map[string]any, caller string) string {
	payload, _ := json.Marshal(map[string]any{
		"level":   level,
		"message": message,
		"fields":  fields,
		"caller":  caller,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			batch := c.drainLocked()
			c.mu.Unlock()
			if batch != nil {
				go c.ship(batch)
			}
		case <-c.stop:
			c.mu.Lock()
			batch := c.drainLocked()
			c.mu.Unlock()
			if batch != nil {
				c.ship(batch)
			}
			return
		}
	}
}

// drainLocked moves the pending map out. Caller holds mu.
func (c *Collector) drainLocked() []Entry {
	if len(c.pending) == 0 {
		return nil
	}
	batch := make([]Entry, 0, len(c.pending))
	for _, e := range c.pending {
		batch = append(batch, *e)
	}
	c.pending = make(map[string]*Entry)
	return batch
}

func (c *Collector) ship(batch []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		// The logger cannot log its own shipping failures without
		// looping, so this goes straight to stderr.
		fmt.Fprintf(os.Stderr, "ops log shipping failed: %v\n", err)
	}
}
