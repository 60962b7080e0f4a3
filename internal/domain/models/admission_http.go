package models

// Requests for the admission and control HTTP endpoints. Defined in domain for
// consistency and reuse.

type AdmitRequest struct {
	Symbol        string   `json:"symbol" validate:"required"`
	Side          string   `json:"side" validate:"required_without=Text,omitempty,oneof=BUY SELL"`
	Confidence    float64  `json:"confidence" validate:"gte=0,lte=1"`
	HintSL        *float64 `json:"hint_sl" validate:"omitempty,gt=0"`
	HintTP        *float64 `json:"hint_tp" validate:"omitempty,gt=0"`
	HintSize      *float64 `json:"hint_size" validate:"omitempty,gt=0"`
	SourceChannel string   `json:"source_channel" default:"api"`
	Text          string   `json:"text"`
	TraceID       string   `json:"trace_id"`
}

type PolicyRequest struct {
	Name string `json:"name" validate:"required"`
}

type CooldownRequest struct {
	Symbol  string `json:"symbol" validate:"required"`
	Minutes int    `json:"minutes" default:"10" validate:"gte=1,lte=1440"`
}

type DecisionsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// GuardPatchRequest updates a subset of guard fields; nil members stay as they
// are. Unknown body fields are rejected before any merge happens.
type GuardPatchRequest struct {
	Enabled             *bool     `json:"enabled"`
	ConfidenceThreshold *float64  `json:"confidence_threshold" validate:"omitempty,gte=0,lte=1"`
	MaxTradeSize        *float64  `json:"max_trade_size" validate:"omitempty,gte=0"`
	MaxDailyLoss        *float64  `json:"max_daily_loss" validate:"omitempty,gte=0"`
	CooldownMinutes     *int      `json:"cooldown_minutes" validate:"omitempty,gte=0"`
	LatencyBudgetMS     *int64    `json:"latency_budget_ms" validate:"omitempty,gte=0"`
	SymbolAllowlist     *[]string `json:"symbol_allowlist"`
	GlobalRatePerMin    *float64  `json:"global_rate_per_min" validate:"omitempty,gte=0"`
	GlobalBurst         *float64  `json:"global_burst" validate:"omitempty,gte=0"`
	SymbolRatePerMin    *float64  `json:"symbol_rate_per_min" validate:"omitempty,gte=0"`
	SymbolBurst         *float64  `json:"symbol_burst" validate:"omitempty,gte=0"`
}
