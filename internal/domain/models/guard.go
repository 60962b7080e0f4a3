package models

import "time"

// GuardReason names a guard check and doubles as the rejection reason token
// written into decision events.
type GuardReason string

const (
	ReasonApproved      GuardReason = "approved"
	ReasonDisabled      GuardReason = "disabled"
	ReasonConfidence    GuardReason = "confidence_threshold"
	ReasonAllowlist     GuardReason = "symbol_allowlist"
	ReasonBreaker       GuardReason = "circuit_breaker"
	ReasonMaxTradeSize  GuardReason = "max_trade_size"
	ReasonLatencyBudget GuardReason = "latency_budget"
	ReasonCooldown      GuardReason = "cooldown"
	ReasonRateLimit     GuardReason = "rate_limit"
	ReasonNoRiskData    GuardReason = "no_risk_data"
	ReasonInvalidPolicy GuardReason = "invalid_policy"
	ReasonStoreError    GuardReason = "store_error"
)

// GuardConfig is the guardrail snapshot the chain evaluates against.
// Zero-valued limits disable their check; Enabled=false rejects everything.
// The circuit-breaker flag is not part of this struct: it lives in the state
// store so every instance sharing the store sees the same trip.
type GuardConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
	MaxTradeSize        float64 // notional ceiling, independent of the policy band
	MaxDailyLoss        float64 // realized daily loss that trips the breaker
	CooldownMinutes     int
	LatencyBudgetMS     int64
	SymbolAllowlist     []string // empty admits every symbol
	GlobalRatePerMin    float64
	GlobalBurst         float64
	SymbolRatePerMin    float64 // 0 disables the per-symbol limiter
	SymbolBurst         float64
}

// CheckResult records one guard check outcome, in evaluation order.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Verdict is the admission outcome for one candidate.
type Verdict struct {
	Eligible    bool
	Reason      GuardReason
	Risk        *RiskParams // nil when derivation failed
	Checks      []CheckResult
	EvaluatedAt time.Time
}
