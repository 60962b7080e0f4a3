package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SignalGate/internal/domain/models"
)

// scriptedStream hands the collector pre-loaded channels.
type scriptedStream struct {
	mu         sync.Mutex
	candCh     chan *models.Candidate
	errCh      chan error
	connectErr error
	connected  bool
	reconnects int
}

func newScriptedStream() *scriptedStream {
	return &scriptedStream{
		candCh: make(chan *models.Candidate, 8),
		errCh:  make(chan error, 8),
	}
}

func (s *scriptedStream) Connect(context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) Subscribe(context.Context) error { return nil }

func (s *scriptedStream) Read(context.Context) (<-chan *models.Candidate, <-chan error) {
	return s.candCh, s.errCh
}

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *scriptedStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCollectorFeedsStreamIntoPipeline(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	stream := newScriptedStream()
	c := NewSignalCollector(stream, p.pipe, p.env.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("collector not connected after start")
	}

	cand := buyCandidate("BTCUSDT", 0.9)
	stream.candCh <- &cand
	waitFor(t, "candidate processed", func() bool { return p.env.pub.count() == 1 })

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if c.IsConnected() {
		t.Fatal("stream still connected after shutdown")
	}
}

func TestCollectorReconnectsOnStreamError(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	stream := newScriptedStream()
	c := NewSignalCollector(stream, p.pipe, p.env.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stream.errCh <- fmt.Errorf("read tcp: connection reset")
	waitFor(t, "reconnect", func() bool { return stream.reconnectCount() == 1 })
	if !p.env.metrics.sawError("stream") {
		t.Fatal("stream error not counted")
	}

	// The loop must keep consuming after a reconnect.
	cand := buyCandidate("ETHUSDT", 0.9)
	stream.candCh <- &cand
	waitFor(t, "candidate after reconnect", func() bool { return p.env.pub.count() == 1 })
}

func TestCollectorStartFailsWhenConnectFails(t *testing.T) {
	p := newPipelineEnv(t, btcQuote(), false)
	stream := newScriptedStream()
	stream.connectErr = fmt.Errorf("dial ws: refused")
	c := NewSignalCollector(stream, p.pipe, p.env.metrics)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("start must surface the connect error")
	}
}
