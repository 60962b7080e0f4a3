package risk

import (
	"errors"
	"fmt"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/policy"
)

// ErrInsufficientMarketData means a stop or target leg has neither a hint nor
// a usable ATR estimate behind it. Recoverable: the candidate is rejected,
// nothing else happens.
var ErrInsufficientMarketData = errors.New("insufficient market data")

// Engine derives per-trade risk parameters. Pure: inputs arrive by value or as
// read-only snapshots, nothing is cached, concurrent calls share nothing.
type Engine struct{}

func New() *Engine { return &Engine{} }

// Derive resolves stop-loss, take-profit and notional for one candidate under
// one policy snapshot. Explicit hints always win over derivation. The notional
// is clamped into the policy band; a clamp is reported, never a rejection.
func (e *Engine) Derive(c models.Candidate, p models.RiskPolicy, q *models.Quote) (models.RiskParams, error) {
	if err := policy.Validate(p); err != nil {
		return models.RiskParams{}, err
	}

	hasPrice := q != nil && q.Price > 0
	hasATR := hasPrice && q.ATR > 0
	if (c.HintSL == nil || c.HintTP == nil) && !hasATR {
		return models.RiskParams{}, fmt.Errorf("%w: %s has no ATR estimate and hints do not cover both legs", ErrInsufficientMarketData, c.Symbol)
	}

	var params models.RiskParams
	if hasPrice {
		params.Entry = q.Price
	}

	// Stops sit below entry and targets above for longs; shorts mirror.
	dir := 1.0
	if c.Side == models.SideSell {
		dir = -1
	}

	if c.HintSL != nil {
		params.StopLoss = *c.HintSL
		params.SLFromHint = true
	} else {
		params.StopLoss = q.Price - dir*q.ATR*p.ATRMultSL
	}
	if c.HintTP != nil {
		params.TakeProfit = *c.HintTP
		params.TPFromHint = true
	} else {
		params.TakeProfit = q.Price + dir*q.ATR*p.ATRMultTP
	}

	req := p.DefaultNotional
	if c.HintSize != nil {
		req = *c.HintSize
	}
	params.RequestedNotional = req
	params.Notional = req
	switch {
	case req < p.MinNotional:
		params.Notional = p.MinNotional
		params.Clamped = true
	case req > p.MaxNotional:
		params.Notional = p.MaxNotional
		params.Clamped = true
	}

	return params, nil
}
