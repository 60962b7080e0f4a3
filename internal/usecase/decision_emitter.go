package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
)

// DecisionEmitter routes decision events to the configured audit backend.
type DecisionEmitter struct {
	pub     domrepo.AuditPublisher
	store   domrepo.AuditStorage
	metrics domrepo.Metrics
	backend string
}

// NewDecisionEmitter creates a new DecisionEmitter instance.
func NewDecisionEmitter(
	pub domrepo.AuditPublisher,
	store domrepo.AuditStorage,
	metrics domrepo.Metrics,
	backend string,
) *DecisionEmitter {
	return &DecisionEmitter{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Emit appends a single decision event to the configured backend.
func (e *DecisionEmitter) Emit(ctx context.Context, ev *models.DecisionEvent) error {
	if ev == nil {
		return fmt.Errorf("decision event is nil")
	}

	start := time.Now()
	var err error

	switch e.backend {
	case "kafka":
		err = e.pub.Publish(ctx, ev)
	case "clickhouse":
		err = e.store.Store(ctx, ev)
	default:
		err = fmt.Errorf("unknown backend: %s", e.backend)
	}

	if err != nil {
		e.metrics.RecordError("emit")
		return fmt.Errorf("emit decision: %w", err)
	}

	e.metrics.RecordLatency("emit", time.Since(start).Seconds())

	return nil
}

// Archive exposes the queryable store behind the emitter. It is nil unless
// the clickhouse backend is active; the streaming backend keeps no history
// this process can read back.
func (e *DecisionEmitter) Archive() domrepo.AuditStorage {
	if e.backend == "clickhouse" {
		return e.store
	}
	return nil
}

// Close releases the active audit backend.
func (e *DecisionEmitter) Close() error {
	var first error
	if e.pub != nil {
		if err := e.pub.Close(); err != nil {
			first = err
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
