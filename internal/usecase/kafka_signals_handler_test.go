package usecase

import (
	"context"
	"testing"
	"time"

	pkgkafka "SignalGate/pkg/kafka"
)

func TestKafkaHandlerAdmitsWellFormedMessage(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	h := NewKafkaSignalsHandler("signals.raw", p.pipe, p.env.metrics)

	if h.Topic() != "signals.raw" {
		t.Fatalf("topic = %q", h.Topic())
	}

	msg := []byte(`{"id":"k-1","symbol":"BTCUSDT","side":"buy","confidence":0.9,"source":"webhook","ts":1756100000}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(p.router.intents) != 1 {
		t.Fatalf("routed %d intents, want 1", len(p.router.intents))
	}
	if got := p.router.intents[0].TraceID; got != "k-1" {
		t.Fatalf("trace id = %q, want message id", got)
	}
	if p.env.pub.count() != 1 {
		t.Fatalf("emitted %d decision events, want 1", p.env.pub.count())
	}
	ev := p.env.pub.events[0]
	if want := time.Unix(1756100000, 0).UTC(); !ev.ReceivedAt.Equal(want) {
		t.Fatalf("received_at = %v, want %v", ev.ReceivedAt, want)
	}
}

func TestKafkaHandlerNormalizesMillisecondTimestamps(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	h := NewKafkaSignalsHandler("signals.raw", p.pipe, p.env.metrics)

	msg := []byte(`{"id":"k-2","symbol":"BTCUSDT","side":"SELL","confidence":0.8,"ts":1756100000123}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	ev := p.env.pub.events[0]
	if want := time.Unix(1756100000, 0).UTC(); !ev.ReceivedAt.Equal(want) {
		t.Fatalf("received_at = %v, want ms timestamp truncated to %v", ev.ReceivedAt, want)
	}
}

func TestKafkaHandlerRejectsMalformedJSON(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	h := NewKafkaSignalsHandler("signals.raw", p.pipe, p.env.metrics)

	if err := h.Handle(context.Background(), []byte(`{"symbol":`)); err == nil {
		t.Fatal("want unmarshal error")
	}
	if !p.env.metrics.sawError("consumer_unmarshal") {
		t.Fatal("unmarshal failure not counted")
	}
	if len(p.router.intents) != 0 {
		t.Fatalf("routed %d intents from a broken message", len(p.router.intents))
	}
}

func TestKafkaHandlerUsesHeaderTraceID(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	h := NewKafkaSignalsHandler("signals.raw", p.pipe, p.env.metrics)

	ctx := pkgkafka.WithTraceID(context.Background(), "hdr-7")
	msg := []byte(`{"symbol":"BTCUSDT","side":"BUY","confidence":0.9}`)
	if err := h.Handle(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := p.router.intents[0].TraceID; got != "hdr-7" {
		t.Fatalf("trace id = %q, want the one from the kafka header", got)
	}
}
