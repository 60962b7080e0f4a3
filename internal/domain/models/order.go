package models

import "time"

// OrderIntent is the outbound handoff to the execution backend. TraceID matches
// the originating candidate and its decision event.
type OrderIntent struct {
	TraceID    string  `json:"trace_id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Notional   float64 `json:"notional"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Price      float64 `json:"price,omitempty"` // entry estimate, 0 when unknown
}

// ExecutionReport is the venue's fill acknowledgement.
type ExecutionReport struct {
	OrderID     string
	TraceID     string
	Symbol      string
	Side        Side
	Notional    float64
	Price       float64
	RealizedPnL float64 // non-zero only when the fill reduces an open position
	ExecutedAt  time.Time
}
