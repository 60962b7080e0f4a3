package usecase

import (
	"context"
	"testing"

	"SignalGate/internal/domain/models"
)

func TestEmitRoutesToKafkaBackend(t *testing.T) {
	pub := &capturePublisher{}
	store := &captureArchive{}
	em := NewDecisionEmitter(pub, store, &capturedMetrics{}, "kafka")

	if err := em.Emit(context.Background(), &models.DecisionEvent{TraceID: "t-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("published %d events, want 1", pub.count())
	}
	if len(store.events) != 0 {
		t.Fatalf("stored %d events, kafka backend must not touch the archive", len(store.events))
	}
	if em.Archive() != nil {
		t.Fatal("kafka backend must expose no queryable archive")
	}
}

func TestEmitRoutesToClickhouseBackend(t *testing.T) {
	pub := &capturePublisher{}
	store := &captureArchive{}
	em := NewDecisionEmitter(pub, store, &capturedMetrics{}, "clickhouse")

	if err := em.Emit(context.Background(), &models.DecisionEvent{TraceID: "t-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(store.events) != 1 {
		t.Fatalf("stored %d events, want 1", len(store.events))
	}
	if pub.count() != 0 {
		t.Fatalf("published %d events, clickhouse backend must not publish", pub.count())
	}
	if em.Archive() == nil {
		t.Fatal("clickhouse backend must expose the archive")
	}
}

func TestEmitUnknownBackend(t *testing.T) {
	metrics := &capturedMetrics{}
	em := NewDecisionEmitter(&capturePublisher{}, &captureArchive{}, metrics, "s3")

	if err := em.Emit(context.Background(), &models.DecisionEvent{TraceID: "t-1"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !metrics.sawError("emit") {
		t.Fatal("unknown backend not recorded as emit error")
	}
}

func TestEmitNilEvent(t *testing.T) {
	em := NewDecisionEmitter(&capturePublisher{}, nil, &capturedMetrics{}, "kafka")
	if err := em.Emit(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}
