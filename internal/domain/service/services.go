package service

import (
	"context"

	"SignalGate/internal/domain/models"
)

// SignalScorer classifies raw signal text into a direction with confidence.
type SignalScorer interface {
	Score(ctx context.Context, text string) (models.Score, error)
}

// MarketData supplies the quote and ATR context risk derivation needs.
// A nil quote with nil error means the source has no data for the symbol.
type MarketData interface {
	Snapshot(ctx context.Context, symbol string) (*models.Quote, error)
}
