package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestEncodeValue(t *testing.T) {
	if b, err := encodeValue([]byte(`raw`)); err != nil || string(b) != "raw" {
		t.Fatalf("bytes passthrough: %q %v", b, err)
	}
	if b, err := encodeValue("text"); err != nil || string(b) != "text" {
		t.Fatalf("string passthrough: %q %v", b, err)
	}
	b, err := encodeValue(map[string]int{"n": 1})
	if err != nil || string(b) != `{"n":1}` {
		t.Fatalf("json encoding: %q %v", b, err)
	}
}

func TestJitterBackoffStaysInRange(t *testing.T) {
	min := 50 * time.Millisecond
	max := 2 * time.Second
	for attempt := 1; attempt <= 20; attempt++ {
		d := jitterBackoff(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of range (0, %v]", attempt, d, max)
		}
	}
}

func TestExtractTraceID(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "content-type", Value: []byte("application/json")},
		{Key: "trace_id", Value: []byte("abc-123")},
	}}
	if got := ExtractTraceID(msg); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractTraceID(kafka.Message{}); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t-9")
	if got := TraceIDFromContext(ctx); got != "t-9" {
		t.Fatalf("got %q", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if ctx2 := WithTraceID(context.Background(), ""); TraceIDFromContext(ctx2) != "" {
		t.Fatal("empty trace id should not be stored")
	}
}

func TestHookFuncsNilFunctionsAreNoops(t *testing.T) {
	var h HookFuncs
	ctx, km, data, err := h.BeforeHandle(context.Background(), "signals.raw", kafka.Message{}, []byte("x"))
	if err != nil || string(data) != "x" || ctx == nil {
		t.Fatalf("unexpected rewrite: %v %q", err, data)
	}
	h.AfterHandle(ctx, "signals.raw", km, data, nil)
	h.OnError(ctx, "signals.raw", km, data, errors.New("boom"))
}

func TestHookFuncsBeforeCanRewriteContext(t *testing.T) {
	h := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return WithTraceID(ctx, ExtractTraceID(km)), km, data, nil
		},
	}
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("hdr-1")}}}
	ctx, _, _, err := h.BeforeHandle(context.Background(), "signals.raw", km, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if got := TraceIDFromContext(ctx); got != "hdr-1" {
		t.Fatalf("trace id not threaded, got %q", got)
	}
}
