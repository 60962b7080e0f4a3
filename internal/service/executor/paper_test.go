package executor

import (
	"context"
	"math"
	"testing"

	"SignalGate/internal/domain/models"
	xlogger "SignalGate/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func intent(side models.Side, notional, price float64) *models.OrderIntent {
	return &models.OrderIntent{
		TraceID:  "t-1",
		Symbol:   "BTCUSDT",
		Side:     side,
		Notional: notional,
		Price:    price,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPaperRouteFillsAndReports(t *testing.T) {
	r := NewPaperRouter(testLogger(t))
	var got *models.ExecutionReport
	r.OnFill(func(_ context.Context, rep *models.ExecutionReport) { got = rep })

	id, err := r.Route(context.Background(), intent(models.SideBuy, 100, 100))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id == "" {
		t.Fatal("no order id")
	}
	if got == nil || got.OrderID != id || got.TraceID != "t-1" {
		t.Fatalf("report = %+v, want callback with order %s for trace t-1", got, id)
	}
	if got.RealizedPnL != 0 {
		t.Fatalf("opening fill realized %v, want 0", got.RealizedPnL)
	}
	if qty, avg := r.Position("BTCUSDT"); !near(qty, 1) || !near(avg, 100) {
		t.Fatalf("position = (%v, %v), want (1, 100)", qty, avg)
	}
}

func TestPaperExtendAveragesEntry(t *testing.T) {
	r := NewPaperRouter(testLogger(t))

	if _, err := r.Route(context.Background(), intent(models.SideBuy, 100, 100)); err != nil {
		t.Fatalf("route: %v", err)
	}
	if _, err := r.Route(context.Background(), intent(models.SideBuy, 110, 110)); err != nil {
		t.Fatalf("route: %v", err)
	}
	// 1 @ 100 then 1 @ 110 averages to 2 @ 105.
	if qty, avg := r.Position("BTCUSDT"); !near(qty, 2) || !near(avg, 105) {
		t.Fatalf("position = (%v, %v), want (2, 105)", qty, avg)
	}
}

func TestPaperReducingFillRealizesPnL(t *testing.T) {
	r := NewPaperRouter(testLogger(t))
	var last *models.ExecutionReport
	r.OnFill(func(_ context.Context, rep *models.ExecutionReport) { last = rep })

	if _, err := r.Route(context.Background(), intent(models.SideBuy, 200, 100)); err != nil {
		t.Fatalf("open: %v", err)
	}
	// Sell 1 of the 2 units at 110: +10 realized, 1 unit stays at avg 100.
	if _, err := r.Route(context.Background(), intent(models.SideSell, 110, 110)); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if !near(last.RealizedPnL, 10) {
		t.Fatalf("realized = %v, want 10", last.RealizedPnL)
	}
	if qty, avg := r.Position("BTCUSDT"); !near(qty, 1) || !near(avg, 100) {
		t.Fatalf("position = (%v, %v), want (1, 100)", qty, avg)
	}
}

func TestPaperFlipOpensAtFillPrice(t *testing.T) {
	r := NewPaperRouter(testLogger(t))
	var last *models.ExecutionReport
	r.OnFill(func(_ context.Context, rep *models.ExecutionReport) { last = rep })

	if _, err := r.Route(context.Background(), intent(models.SideBuy, 100, 100)); err != nil {
		t.Fatalf("open: %v", err)
	}
	// Sell 3 units at 110: closes the 1 long (+10), opens 2 short at 110.
	if _, err := r.Route(context.Background(), intent(models.SideSell, 330, 110)); err != nil {
		t.Fatalf("flip: %v", err)
	}
	if !near(last.RealizedPnL, 10) {
		t.Fatalf("realized = %v, want 10 on the closed unit only", last.RealizedPnL)
	}
	if qty, avg := r.Position("BTCUSDT"); !near(qty, -2) || !near(avg, 110) {
		t.Fatalf("position = (%v, %v), want (-2, 110)", qty, avg)
	}
}

func TestPaperShortProfitsWhenPriceFalls(t *testing.T) {
	r := NewPaperRouter(testLogger(t))
	var last *models.ExecutionReport
	r.OnFill(func(_ context.Context, rep *models.ExecutionReport) { last = rep })

	if _, err := r.Route(context.Background(), intent(models.SideSell, 200, 100)); err != nil {
		t.Fatalf("open short: %v", err)
	}
	if _, err := r.Route(context.Background(), intent(models.SideBuy, 90, 90)); err != nil {
		t.Fatalf("cover: %v", err)
	}
	if !near(last.RealizedPnL, 10) {
		t.Fatalf("realized = %v, want +10 covering 1 unit 100->90", last.RealizedPnL)
	}
	if qty, _ := r.Position("BTCUSDT"); !near(qty, -1) {
		t.Fatalf("qty = %v, want -1 remaining", qty)
	}
}

func TestPaperRejectsNonPositiveNotional(t *testing.T) {
	r := NewPaperRouter(testLogger(t))
	if _, err := r.Route(context.Background(), intent(models.SideBuy, 0, 100)); err == nil {
		t.Fatal("expected error for zero notional")
	}
}

func TestPaperPricelessFillSkipsLedger(t *testing.T) {
	r := NewPaperRouter(testLogger(t))
	var got *models.ExecutionReport
	r.OnFill(func(_ context.Context, rep *models.ExecutionReport) { got = rep })

	id, err := r.Route(context.Background(), intent(models.SideBuy, 100, 0))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id == "" || got == nil {
		t.Fatal("priceless fill must still acknowledge and report")
	}
	if qty, _ := r.Position("BTCUSDT"); qty != 0 {
		t.Fatalf("qty = %v, want untouched ledger without a price", qty)
	}
}
