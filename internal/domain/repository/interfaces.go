package repository

import (
	"context"
	"errors"
	"time"

	"SignalGate/internal/domain/models"
)

// ErrStateUnavailable wraps any transport failure of a StateStore backend.
// Guards treat it as a rejection, never as a pass.
var ErrStateUnavailable = errors.New("state store unavailable")

// SignalStream is a live feed of candidates from the ingestion collaborator.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candidate, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// StateStore owns the mutable admission state shared across instances:
// per-symbol cooldowns, token buckets and the circuit breaker. The Try*
// primitives are atomic check-and-mutate; callers treat a store error as a
// rejection (fail closed), never as a pass.
type StateStore interface {
	TryAcquireCooldown(ctx context.Context, symbol string, d time.Duration) (bool, error)
	ForceCooldown(ctx context.Context, symbol string, d time.Duration) error
	ClearCooldown(ctx context.Context, symbol string) error
	CooldownRemaining(ctx context.Context, symbol string) (time.Duration, error)
	TryConsumeToken(ctx context.Context, key string, capacity, refillPerSec float64) (bool, error)
	TripBreaker(ctx context.Context) error
	ResetBreaker(ctx context.Context) error
	BreakerTripped(ctx context.Context) (bool, error)
	Health(ctx context.Context) error
	Close() error
}

// AuditPublisher appends decision events to a streaming sink.
type AuditPublisher interface {
	Publish(ctx context.Context, ev *models.DecisionEvent) error
	Close() error
}

// AuditStorage archives decision events and answers range queries.
type AuditStorage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, ev *models.DecisionEvent) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.DecisionEvent, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// OrderRouter hands eligible intents to the execution backend.
type OrderRouter interface {
	Route(ctx context.Context, intent *models.OrderIntent) (string, error)
}

type Metrics interface {
	RecordDecision(symbol, reason string, eligible bool)
	RecordCheck(name string, passed bool)
	RecordDrop(reason string)
	RecordDailyPnL(value float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
