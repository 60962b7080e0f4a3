package usecase

import (
	"context"
	"errors"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	domsvc "SignalGate/internal/domain/service"
	"SignalGate/internal/guard"
	"SignalGate/internal/policy"
	"SignalGate/internal/risk"
	xlogger "SignalGate/pkg/logger"
)

// AdmissionController runs one candidate through policy snapshot, risk
// derivation and the guard chain. Exactly one decision event leaves this type
// per call, on every path, including derivation failures.
type AdmissionController struct {
	policies *policy.Store
	guards   *guard.ConfigStore
	engine   *risk.Engine
	chain    *guard.Chain
	market   domsvc.MarketData
	emitter  *DecisionEmitter
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	dryRun   bool
	now      func() time.Time
}

func NewAdmissionController(
	policies *policy.Store,
	guards *guard.ConfigStore,
	engine *risk.Engine,
	chain *guard.Chain,
	market domsvc.MarketData,
	emitter *DecisionEmitter,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	dryRun bool,
) *AdmissionController {
	return &AdmissionController{
		policies: policies,
		guards:   guards,
		engine:   engine,
		chain:    chain,
		market:   market,
		emitter:  emitter,
		metrics:  metrics,
		logger:   logger,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// DryRun reports whether eligible verdicts are withheld from routing.
func (a *AdmissionController) DryRun() bool { return a.dryRun }

// Admit evaluates one candidate and returns its verdict. The policy and guard
// snapshots are two independent atomic reads; a reconfigure landing between
// them applies from the next candidate on, and the decision event records the
// combination that was actually used.
func (a *AdmissionController) Admit(ctx context.Context, cand models.Candidate) models.Verdict {
	start := a.now()
	pol := a.policies.Active()
	cfg := a.guards.Snapshot()

	var quote *models.Quote
	if a.market != nil {
		q, err := a.market.Snapshot(ctx, cand.Symbol)
		if err != nil {
			// A failed lookup reads as missing market data: derivation falls
			// back to hints or rejects with no_risk_data.
			a.logger.Warn("market context lookup failed",
				xlogger.String("symbol", cand.Symbol),
				xlogger.Error(err),
			)
			a.metrics.RecordError("market_lookup")
		} else {
			quote = q
		}
	}

	var v models.Verdict
	rp, err := a.engine.Derive(cand, pol, quote)
	switch {
	case err == nil:
		v = a.chain.Evaluate(ctx, cand, rp, cfg)
	case errors.Is(err, risk.ErrInsufficientMarketData):
		// No derivable risk consumes no cooldown or token budget.
		v = models.Verdict{
			Reason:      models.ReasonNoRiskData,
			Checks:      []models.CheckResult{{Name: "no_risk_data", Passed: false, Detail: err.Error()}},
			EvaluatedAt: a.now(),
		}
	default:
		// An unusable policy snapshot means guardrail configuration is broken
		// somewhere upstream of the atomic swap. Reject and alert.
		a.logger.Error("active policy failed validation",
			xlogger.String("policy", string(pol.Name)),
			xlogger.Error(err),
		)
		a.metrics.RecordError("invalid_policy")
		v = models.Verdict{
			Reason:      models.ReasonInvalidPolicy,
			Checks:      []models.CheckResult{{Name: "invalid_policy", Passed: false, Detail: err.Error()}},
			EvaluatedAt: a.now(),
		}
	}

	a.metrics.RecordDecision(cand.Symbol, string(v.Reason), v.Eligible)
	for _, ck := range v.Checks {
		a.metrics.RecordCheck(ck.Name, ck.Passed)
	}
	a.metrics.RecordLatency("admit", a.now().Sub(start).Seconds())

	ev := a.buildEvent(cand, pol, v)
	if err := a.emitter.Emit(ctx, ev); err != nil {
		// The verdict stands. A sink outage shows up in logs and metrics,
		// never as a dropped or flipped decision.
		a.logger.Error("decision event emission failed",
			xlogger.String("trace_id", ev.TraceID),
			xlogger.Error(err),
		)
	}

	return v
}

func (a *AdmissionController) buildEvent(cand models.Candidate, pol models.RiskPolicy, v models.Verdict) *models.DecisionEvent {
	ev := &models.DecisionEvent{
		TraceID:      cand.ID,
		Symbol:       cand.Symbol,
		Side:         cand.Side,
		Source:       cand.SourceChannel,
		Confidence:   cand.Confidence,
		Eligible:     v.Eligible,
		Reason:       v.Reason,
		Checks:       v.Checks,
		Policy:       pol.Name,
		DryRun:       a.dryRun,
		ScoreReasons: cand.ScoreReasons,
		ReceivedAt:   cand.ReceivedAt,
		EvaluatedAt:  v.EvaluatedAt,
	}
	if v.Risk != nil {
		ev.StopLoss = v.Risk.StopLoss
		ev.TakeProfit = v.Risk.TakeProfit
		ev.Notional = v.Risk.Notional
		ev.RequestedNotional = v.Risk.RequestedNotional
		ev.Clamped = v.Risk.Clamped
	}
	return ev
}
