package guard

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"SignalGate/internal/domain/models"
)

// ErrInvalidField rejects a patch that names an unknown field or carries a
// value outside its bounds. Nothing is mutated on rejection.
var ErrInvalidField = errors.New("invalid guard field")

// ConfigStore holds the guardrail snapshot. An update builds a merged copy,
// validates it, then swaps the pointer, so readers always observe a complete
// config and a rejected patch leaves no trace. Writers serialize; readers are
// lock-free.
type ConfigStore struct {
	mu  sync.Mutex
	cur atomic.Pointer[models.GuardConfig]
}

func NewConfigStore(initial models.GuardConfig) (*ConfigStore, error) {
	if err := validate(initial); err != nil {
		return nil, err
	}
	s := &ConfigStore{}
	cp := initial
	cp.SymbolAllowlist = append([]string(nil), initial.SymbolAllowlist...)
	s.cur.Store(&cp)
	return s, nil
}

// Snapshot returns the current config by value.
func (s *ConfigStore) Snapshot() models.GuardConfig {
	return *s.cur.Load()
}

// Update merges the non-nil patch fields into the current config and swaps the
// result in atomically. A patch that fails validation changes nothing.
func (s *ConfigStore) Update(p models.GuardPatchRequest) (models.GuardConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cur.Load()
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if p.ConfidenceThreshold != nil {
		next.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.MaxTradeSize != nil {
		next.MaxTradeSize = *p.MaxTradeSize
	}
	if p.MaxDailyLoss != nil {
		next.MaxDailyLoss = *p.MaxDailyLoss
	}
	if p.CooldownMinutes != nil {
		next.CooldownMinutes = *p.CooldownMinutes
	}
	if p.LatencyBudgetMS != nil {
		next.LatencyBudgetMS = *p.LatencyBudgetMS
	}
	if p.SymbolAllowlist != nil {
		next.SymbolAllowlist = append([]string(nil), (*p.SymbolAllowlist)...)
	}
	if p.GlobalRatePerMin != nil {
		next.GlobalRatePerMin = *p.GlobalRatePerMin
	}
	if p.GlobalBurst != nil {
		next.GlobalBurst = *p.GlobalBurst
	}
	if p.SymbolRatePerMin != nil {
		next.SymbolRatePerMin = *p.SymbolRatePerMin
	}
	if p.SymbolBurst != nil {
		next.SymbolBurst = *p.SymbolBurst
	}

	if err := validate(next); err != nil {
		return models.GuardConfig{}, err
	}
	s.cur.Store(&next)
	return next, nil
}

func validate(c models.GuardConfig) error {
	switch {
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: confidence_threshold %v outside [0,1]", ErrInvalidField, c.ConfidenceThreshold)
	case c.MaxTradeSize < 0:
		return fmt.Errorf("%w: max_trade_size %v is negative", ErrInvalidField, c.MaxTradeSize)
	case c.MaxDailyLoss < 0:
		return fmt.Errorf("%w: max_daily_loss %v is negative", ErrInvalidField, c.MaxDailyLoss)
	case c.CooldownMinutes < 0:
		return fmt.Errorf("%w: cooldown_minutes %d is negative", ErrInvalidField, c.CooldownMinutes)
	case c.LatencyBudgetMS < 0:
		return fmt.Errorf("%w: latency_budget_ms %d is negative", ErrInvalidField, c.LatencyBudgetMS)
	case c.GlobalRatePerMin < 0 || c.GlobalBurst < 0 || c.SymbolRatePerMin < 0 || c.SymbolBurst < 0:
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidField)
	case c.GlobalRatePerMin > 0 && c.GlobalBurst < 1:
		return fmt.Errorf("%w: global_burst must be at least 1 when a global rate is set", ErrInvalidField)
	case c.SymbolRatePerMin > 0 && c.SymbolBurst < 1:
		return fmt.Errorf("%w: symbol_burst must be at least 1 when a symbol rate is set", ErrInvalidField)
	}
	return nil
}
