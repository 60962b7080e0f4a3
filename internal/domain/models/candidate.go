package models

import "time"

// Side is the direction a candidate proposes. NO-TRADE candidates are counted
// and dropped before admission.
type Side string

const (
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
	SideNoTrade Side = "NO-TRADE"
)

// Candidate is a normalized trading signal awaiting admission. Immutable once
// ingested; everything derived from it (risk params, verdict) lives in its own type.
type Candidate struct {
	ID            string // correlation id, assigned at ingestion when the source sent none
	Symbol        string
	Side          Side
	Confidence    float64  // classifier score in [0,1]
	HintSL        *float64 // explicit stop-loss from the source, takes precedence over derivation
	HintTP        *float64
	HintSize      *float64 // requested notional
	SourceChannel string   // "telegram", "webhook", "api", ...
	Text          string   // raw signal text, kept so unscored candidates can be classified
	ScoreReasons  []string // classifier rationale, carried into the audit trail
	ReceivedAt    time.Time
}

// Score is the external classifier's output for one piece of signal text.
type Score struct {
	Label      string // "long" | "short" | "flat"
	Confidence float64
	Reasons    []string
}
