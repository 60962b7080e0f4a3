package models

import "time"

// DecisionEvent is the append-only audit record: exactly one per admission
// attempt, eligible or not. Field names are part of the sink contract, so risk
// parameters are flattened for direct column mapping.
type DecisionEvent struct {
	TraceID           string        `json:"trace_id"`
	Symbol            string        `json:"symbol"`
	Side              Side          `json:"side"`
	Source            string        `json:"source"`
	Confidence        float64       `json:"confidence"`
	Eligible          bool          `json:"eligible"`
	Reason            GuardReason   `json:"reason"`
	Checks            []CheckResult `json:"checks"`
	Policy            PolicyName    `json:"policy"`
	StopLoss          float64       `json:"stop_loss,omitempty"`
	TakeProfit        float64       `json:"take_profit,omitempty"`
	Notional          float64       `json:"notional,omitempty"`
	RequestedNotional float64       `json:"requested_notional,omitempty"`
	Clamped           bool          `json:"clamped,omitempty"`
	DryRun            bool          `json:"dry_run"`
	ScoreReasons      []string      `json:"score_reasons,omitempty"`
	ReceivedAt        time.Time     `json:"received_at"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
}
