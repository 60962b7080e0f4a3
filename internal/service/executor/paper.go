package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	xlogger "SignalGate/pkg/logger"
)

// position is one symbol's open book entry: signed base quantity (+ long) and
// the average entry price.
type position struct {
	qty float64
	avg float64
}

// PaperRouter simulates the execution venue in memory. Orders fill instantly
// at the intent's entry price; fills against an open position realize PnL
// against the average entry. Reports go to the registered callback.
type PaperRouter struct {
	logger *xlogger.Logger
	now    func() time.Time

	mu     sync.Mutex
	book   map[string]*position
	onFill func(context.Context, *models.ExecutionReport)
}

func NewPaperRouter(logger *xlogger.Logger) *PaperRouter {
	return &PaperRouter{
		logger: logger,
		now:    time.Now,
		book:   make(map[string]*position),
	}
}

// OnFill registers the execution report callback. Call before routing starts.
func (r *PaperRouter) OnFill(fn func(context.Context, *models.ExecutionReport)) {
	r.onFill = fn
}

func (r *PaperRouter) Route(ctx context.Context, in *models.OrderIntent) (string, error) {
	if in == nil {
		return "", fmt.Errorf("intent is nil")
	}
	if in.Notional <= 0 {
		return "", fmt.Errorf("notional must be > 0")
	}

	orderID := uuid.New().String()

	// Without an entry estimate there is no quantity to book; the fill is
	// acknowledged but carries no PnL.
	var realized float64
	if in.Price > 0 {
		qty := in.Notional / in.Price
		if in.Side == models.SideSell {
			qty = -qty
		}
		realized = r.applyFill(in.Symbol, qty, in.Price)
	}

	rep := &models.ExecutionReport{
		OrderID:     orderID,
		TraceID:     in.TraceID,
		Symbol:      in.Symbol,
		Side:        in.Side,
		Notional:    in.Notional,
		Price:       in.Price,
		RealizedPnL: realized,
		ExecutedAt:  r.now().UTC(),
	}

	r.logger.Info("paper fill",
		xlogger.String("order_id", orderID),
		xlogger.String("trace_id", in.TraceID),
		xlogger.String("symbol", in.Symbol),
		xlogger.String("side", string(in.Side)),
		xlogger.Float64("notional", in.Notional),
		xlogger.Float64("realized_pnl", realized),
	)

	if r.onFill != nil {
		r.onFill(ctx, rep)
	}
	return orderID, nil
}

func (r *PaperRouter) applyFill(symbol string, qty, price float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.book[symbol]
	if pos == nil {
		pos = &position{}
		r.book[symbol] = pos
	}

	if pos.qty == 0 || (pos.qty > 0) == (qty > 0) {
		total := pos.qty + qty
		pos.avg = (pos.avg*pos.qty + price*qty) / total
		pos.qty = total
		return 0
	}

	// Reducing or flipping: PnL realizes on the closed part only.
	closed := math.Min(math.Abs(qty), math.Abs(pos.qty))
	sign := 1.0
	if pos.qty < 0 {
		sign = -1
	}
	realized := (price - pos.avg) * closed * sign

	pos.qty += qty
	if math.Abs(pos.qty) < 1e-12 {
		pos.qty = 0
		pos.avg = 0
	} else if (pos.qty > 0) != (sign > 0) {
		// Flipped: the remainder opens at the fill price.
		pos.avg = price
	}
	return realized
}

// Position reports the current signed quantity and average entry for a symbol.
func (r *PaperRouter) Position(symbol string) (qty, avg float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pos := r.book[symbol]; pos != nil {
		return pos.qty, pos.avg
	}
	return 0, 0
}

var _ domrepo.OrderRouter = (*PaperRouter)(nil)
