package usecase

import (
	"context"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
)

// SignalCollector collects candidates from the signal stream and runs them
// through the pipeline.
type SignalCollector struct {
	stream  domrepo.SignalStream
	pipe    *SignalPipeline
	metrics domrepo.Metrics
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(stream domrepo.SignalStream, pipe *SignalPipeline, metrics domrepo.Metrics) *SignalCollector {
	return &SignalCollector{stream: stream, pipe: pipe, metrics: metrics}
}

// IsConnected returns true if the signal stream is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	candCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, candCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, candCh <-chan *models.Candidate, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case cand := <-candCh:
			if cand == nil {
				continue
			}
			_ = c.pipe.Process(ctx, *cand)
		}
	}
}

// Shutdown closes the stream. The consume loop exits with the context passed
// to Start.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
