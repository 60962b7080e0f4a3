package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	xlogger "SignalGate/pkg/logger"
)

const (
	globalBucketKey    = "global"
	symbolBucketPrefix = "symbol:"
)

// Chain evaluates the fixed guard sequence for one candidate. Checks run in
// declaration order, first failure wins, and every check that ran lands on the
// verdict. The circuit breaker is read live from the state store rather than
// from the config snapshot, and it is the one check validated a second time
// after everything else passed: a trip that lands mid-evaluation still rejects.
type Chain struct {
	store  domrepo.StateStore
	logger *xlogger.Logger
	now    func() time.Time
}

func NewChain(store domrepo.StateStore, logger *xlogger.Logger) *Chain {
	return &Chain{store: store, logger: logger, now: time.Now}
}

type check struct {
	name   string
	reason models.GuardReason
	eval   func(ctx context.Context) (bool, string, error)
}

// Evaluate runs the chain. Disabled guardrails reject immediately: no later
// check is evaluated or recorded and no cooldown or token budget is touched.
// A state store failure fails closed with reason store_error.
func (c *Chain) Evaluate(ctx context.Context, cand models.Candidate, rp models.RiskParams, cfg models.GuardConfig) models.Verdict {
	v := models.Verdict{Risk: &rp, EvaluatedAt: c.now()}

	if !cfg.Enabled {
		v.Reason = models.ReasonDisabled
		v.Checks = append(v.Checks, models.CheckResult{Name: "enabled", Passed: false, Detail: "guardrails disabled"})
		return v
	}
	v.Checks = append(v.Checks, models.CheckResult{Name: "enabled", Passed: true})

	checks := []check{
		{
			name:   "confidence_threshold",
			reason: models.ReasonConfidence,
			eval: func(context.Context) (bool, string, error) {
				if cand.Confidence < cfg.ConfidenceThreshold {
					return false, fmt.Sprintf("confidence %.3f below threshold %.3f", cand.Confidence, cfg.ConfidenceThreshold), nil
				}
				return true, "", nil
			},
		},
		{
			name:   "symbol_allowlist",
			reason: models.ReasonAllowlist,
			eval: func(context.Context) (bool, string, error) {
				if len(cfg.SymbolAllowlist) == 0 {
					return true, "", nil
				}
				for _, s := range cfg.SymbolAllowlist {
					if strings.EqualFold(s, cand.Symbol) {
						return true, "", nil
					}
				}
				return false, cand.Symbol + " not in allowlist", nil
			},
		},
		{
			name:   "circuit_breaker",
			reason: models.ReasonBreaker,
			eval:   c.breakerOpen,
		},
		{
			name:   "max_trade_size",
			reason: models.ReasonMaxTradeSize,
			eval: func(context.Context) (bool, string, error) {
				if cfg.MaxTradeSize > 0 && rp.Notional > cfg.MaxTradeSize {
					return false, fmt.Sprintf("notional %.2f above cap %.2f", rp.Notional, cfg.MaxTradeSize), nil
				}
				return true, "", nil
			},
		},
		{
			name:   "latency_budget",
			reason: models.ReasonLatencyBudget,
			eval: func(context.Context) (bool, string, error) {
				if cfg.LatencyBudgetMS <= 0 {
					return true, "", nil
				}
				if age := c.now().Sub(cand.ReceivedAt); age > time.Duration(cfg.LatencyBudgetMS)*time.Millisecond {
					return false, fmt.Sprintf("signal age %s over budget %dms", age.Round(time.Millisecond), cfg.LatencyBudgetMS), nil
				}
				return true, "", nil
			},
		},
		{
			name:   "cooldown",
			reason: models.ReasonCooldown,
			eval: func(ctx context.Context) (bool, string, error) {
				ok, err := c.store.TryAcquireCooldown(ctx, cand.Symbol, time.Duration(cfg.CooldownMinutes)*time.Minute)
				if err != nil {
					return false, "", err
				}
				if !ok {
					return false, "cooldown active for " + cand.Symbol, nil
				}
				return true, "", nil
			},
		},
		{
			name:   "rate_limit",
			reason: models.ReasonRateLimit,
			eval: func(ctx context.Context) (bool, string, error) {
				if cfg.GlobalRatePerMin > 0 {
					ok, err := c.store.TryConsumeToken(ctx, globalBucketKey, cfg.GlobalBurst, cfg.GlobalRatePerMin/60)
					if err != nil {
						return false, "", err
					}
					if !ok {
						return false, "global rate exhausted", nil
					}
				}
				if cfg.SymbolRatePerMin > 0 {
					ok, err := c.store.TryConsumeToken(ctx, symbolBucketPrefix+cand.Symbol, cfg.SymbolBurst, cfg.SymbolRatePerMin/60)
					if err != nil {
						return false, "", err
					}
					if !ok {
						return false, "symbol rate exhausted for " + cand.Symbol, nil
					}
				}
				return true, "", nil
			},
		},
	}

	for _, ck := range checks {
		ok, detail, err := ck.eval(ctx)
		if err != nil {
			return c.failClosed(v, ck.name, err)
		}
		v.Checks = append(v.Checks, models.CheckResult{Name: ck.name, Passed: ok, Detail: detail})
		if !ok {
			v.Reason = ck.reason
			return v
		}
	}

	ok, detail, err := c.breakerOpen(ctx)
	if err != nil {
		return c.failClosed(v, "circuit_breaker", err)
	}
	v.Checks = append(v.Checks, models.CheckResult{Name: "circuit_breaker", Passed: ok, Detail: detail})
	if !ok {
		v.Reason = models.ReasonBreaker
		return v
	}

	v.Eligible = true
	v.Reason = models.ReasonApproved
	return v
}

func (c *Chain) breakerOpen(ctx context.Context) (bool, string, error) {
	tripped, err := c.store.BreakerTripped(ctx)
	if err != nil {
		return false, "", err
	}
	if tripped {
		return false, "circuit breaker tripped", nil
	}
	return true, "", nil
}

func (c *Chain) failClosed(v models.Verdict, name string, err error) models.Verdict {
	c.logger.Error("guard check hit state store failure",
		xlogger.String("check", name),
		xlogger.Error(err),
	)
	v.Checks = append(v.Checks, models.CheckResult{Name: name, Passed: false, Detail: "state store unavailable"})
	v.Reason = models.ReasonStoreError
	return v
}
