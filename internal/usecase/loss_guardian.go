package usecase

import (
	"context"
	"sync"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/guard"
	xlogger "SignalGate/pkg/logger"
)

// LossGuardian watches realized PnL from execution reports and trips the
// circuit breaker once the cumulative loss for the current UTC day crosses
// max_daily_loss. The limit is read from the live guard config on every
// report, so operator patches take effect immediately. The breaker stays
// tripped until an operator resets it; the guardian only re-arms its own
// latch at day rollover.
type LossGuardian struct {
	store   domrepo.StateStore
	metrics domrepo.Metrics
	logger  *xlogger.Logger
	guards  *guard.ConfigStore

	mu      sync.Mutex
	day     time.Time
	pnl     float64
	tripped bool

	now func() time.Time
}

// NewLossGuardian creates a new LossGuardian. A max_daily_loss of zero or
// below disables tripping but PnL is still tracked for the gauge.
func NewLossGuardian(store domrepo.StateStore, metrics domrepo.Metrics, logger *xlogger.Logger, guards *guard.ConfigStore) *LossGuardian {
	return &LossGuardian{
		store:   store,
		metrics: metrics,
		logger:  logger,
		guards:  guards,
		now:     time.Now,
	}
}

// OnReport folds one execution report into the day's running PnL.
func (g *LossGuardian) OnReport(ctx context.Context, rep *models.ExecutionReport) {
	if rep == nil {
		return
	}
	maxLoss := g.guards.Snapshot().MaxDailyLoss

	g.mu.Lock()
	today := g.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(g.day) {
		g.day = today
		g.pnl = 0
		g.tripped = false
	}
	g.pnl += rep.RealizedPnL
	pnl := g.pnl
	shouldTrip := maxLoss > 0 && pnl <= -maxLoss && !g.tripped
	if shouldTrip {
		g.tripped = true
	}
	g.mu.Unlock()

	g.metrics.RecordDailyPnL(pnl)

	if !shouldTrip {
		return
	}

	if err := g.store.TripBreaker(ctx); err != nil {
		g.logger.Error("failed to trip circuit breaker on daily loss",
			xlogger.Float64("daily_pnl", pnl),
			xlogger.Float64("max_daily_loss", maxLoss),
			xlogger.Error(err),
		)
		g.metrics.RecordError("breaker_trip")
		// Un-latch so the next report retries the trip.
		g.mu.Lock()
		g.tripped = false
		g.mu.Unlock()
		return
	}

	g.logger.Error("daily loss limit reached, circuit breaker tripped",
		xlogger.Float64("daily_pnl", pnl),
		xlogger.Float64("max_daily_loss", maxLoss),
		xlogger.String("symbol", rep.Symbol),
		xlogger.String("order_id", rep.OrderID),
	)
}

// DailyPnL reports the running total for the current day.
func (g *LossGuardian) DailyPnL() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pnl
}
