package models

import "time"

// Quote is the market context consulted during risk derivation.
type Quote struct {
	Symbol    string
	Price     float64
	ATR       float64 // average-true-range style volatility estimate
	Timestamp time.Time
}

// RiskParams is the active policy applied to one candidate. Requested and
// applied notional are both kept so clamping shows up in the audit trail
// instead of silently disappearing.
type RiskParams struct {
	StopLoss          float64
	TakeProfit        float64
	Notional          float64 // after clamping into the policy band
	RequestedNotional float64
	Clamped           bool
	Entry             float64 // price used for ATR-derived levels; 0 when hints covered both legs
	SLFromHint        bool
	TPFromHint        bool
}
