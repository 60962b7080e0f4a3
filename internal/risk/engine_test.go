package risk

import (
	"errors"
	"testing"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/policy"
)

func f64(v float64) *float64 { return &v }

func moderate() models.RiskPolicy {
	return policy.Presets()[models.PolicyModerate]
}

func TestDeriveHintsWinOverPolicy(t *testing.T) {
	c := models.Candidate{
		Symbol:   "BTCUSDT",
		Side:     models.SideBuy,
		HintSL:   f64(95.5),
		HintTP:   f64(130),
		HintSize: f64(100),
	}
	q := &models.Quote{Symbol: "BTCUSDT", Price: 100, ATR: 5}

	got, err := New().Derive(c, moderate(), q)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.StopLoss != 95.5 || got.TakeProfit != 130 {
		t.Fatalf("hints not used verbatim: sl=%v tp=%v", got.StopLoss, got.TakeProfit)
	}
	if !got.SLFromHint || !got.TPFromHint {
		t.Fatalf("hint provenance not recorded: %+v", got)
	}
}

func TestDeriveATRLevelsBuy(t *testing.T) {
	c := models.Candidate{Symbol: "BTCUSDT", Side: models.SideBuy}
	p := moderate() // sl mult 1.5, tp mult 2.5
	q := &models.Quote{Price: 100, ATR: 4}

	got, err := New().Derive(c, p, q)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.StopLoss != 100-4*1.5 {
		t.Fatalf("buy stop: got %v want %v", got.StopLoss, 100-4*1.5)
	}
	if got.TakeProfit != 100+4*2.5 {
		t.Fatalf("buy target: got %v want %v", got.TakeProfit, 100+4*2.5)
	}
	if got.Entry != 100 {
		t.Fatalf("entry: got %v", got.Entry)
	}
}

func TestDeriveATRLevelsSellMirror(t *testing.T) {
	c := models.Candidate{Symbol: "BTCUSDT", Side: models.SideSell}
	q := &models.Quote{Price: 100, ATR: 4}

	got, err := New().Derive(c, moderate(), q)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.StopLoss <= 100 {
		t.Fatalf("sell stop must sit above entry, got %v", got.StopLoss)
	}
	if got.TakeProfit >= 100 {
		t.Fatalf("sell target must sit below entry, got %v", got.TakeProfit)
	}
}

func TestDeriveClampReportsInsteadOfRejecting(t *testing.T) {
	p := moderate() // band [50, 500]
	q := &models.Quote{Price: 100, ATR: 4}

	over := models.Candidate{Symbol: "BTCUSDT", Side: models.SideBuy, HintSize: f64(1000)}
	got, err := New().Derive(over, p, q)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Notional != 500 || !got.Clamped {
		t.Fatalf("expected clamp to 500, got %v clamped=%v", got.Notional, got.Clamped)
	}
	if got.RequestedNotional != 1000 {
		t.Fatalf("requested notional lost: %v", got.RequestedNotional)
	}

	under := models.Candidate{Symbol: "BTCUSDT", Side: models.SideBuy, HintSize: f64(5)}
	got, err = New().Derive(under, p, q)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Notional != 50 || !got.Clamped {
		t.Fatalf("expected clamp to 50, got %v clamped=%v", got.Notional, got.Clamped)
	}
}

func TestDeriveDefaultNotionalWithoutHint(t *testing.T) {
	c := models.Candidate{Symbol: "BTCUSDT", Side: models.SideBuy}
	q := &models.Quote{Price: 100, ATR: 4}

	got, err := New().Derive(c, moderate(), q)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Notional != 100 || got.Clamped {
		t.Fatalf("expected policy default 100 unclamped, got %v clamped=%v", got.Notional, got.Clamped)
	}
}

func TestDeriveNoATRNoHints(t *testing.T) {
	c := models.Candidate{Symbol: "BTCUSDT", Side: models.SideBuy}

	_, err := New().Derive(c, moderate(), nil)
	if !errors.Is(err, ErrInsufficientMarketData) {
		t.Fatalf("expected ErrInsufficientMarketData, got %v", err)
	}

	_, err = New().Derive(c, moderate(), &models.Quote{Price: 100, ATR: 0})
	if !errors.Is(err, ErrInsufficientMarketData) {
		t.Fatalf("zero ATR must read as missing data, got %v", err)
	}
}

func TestDeriveHintsAloneNeedNoQuote(t *testing.T) {
	c := models.Candidate{
		Symbol: "BTCUSDT",
		Side:   models.SideBuy,
		HintSL: f64(95),
		HintTP: f64(110),
	}

	got, err := New().Derive(c, moderate(), nil)
	if err != nil {
		t.Fatalf("derive with full hints and no quote: %v", err)
	}
	if got.StopLoss != 95 || got.TakeProfit != 110 {
		t.Fatalf("unexpected levels: %+v", got)
	}
	if got.Entry != 0 {
		t.Fatalf("entry should stay unset without a quote, got %v", got.Entry)
	}
}

func TestDeriveRejectsInvalidPolicy(t *testing.T) {
	p := moderate()
	p.ATRMultSL = 0

	_, err := New().Derive(models.Candidate{Symbol: "X", Side: models.SideBuy}, p, &models.Quote{Price: 1, ATR: 1})
	if !errors.Is(err, policy.ErrInvalid) {
		t.Fatalf("expected invalid policy error, got %v", err)
	}
}
