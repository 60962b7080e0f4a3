package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	domsvc "SignalGate/internal/domain/service"
	xlogger "SignalGate/pkg/logger"
)

// SignalPipeline owns the caller side of admission: finalize the candidate,
// score it when the source sent raw text, drop NO-TRADE, admit, and hand
// eligible intents to the order router unless dry-run withholds them.
// Every inbound surface (stream, Kafka, HTTP) funnels through Process so
// routing behavior cannot diverge between them.
type SignalPipeline struct {
	ctrl    *AdmissionController
	scorer  domsvc.SignalScorer
	router  domrepo.OrderRouter
	metrics domrepo.Metrics
	logger  *xlogger.Logger
	dryRun  bool
	now     func() time.Time
}

func NewSignalPipeline(
	ctrl *AdmissionController,
	scorer domsvc.SignalScorer,
	router domrepo.OrderRouter,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	dryRun bool,
) *SignalPipeline {
	return &SignalPipeline{
		ctrl:    ctrl,
		scorer:  scorer,
		router:  router,
		metrics: metrics,
		logger:  logger,
		dryRun:  dryRun,
		now:     time.Now,
	}
}

// DryRun reports whether eligible intents are withheld from the router.
func (p *SignalPipeline) DryRun() bool {
	return p.dryRun
}

// Process runs one candidate end to end. A nil verdict means the candidate
// never reached admission (NO-TRADE or unscorable) and no decision event
// exists for it; those are counted as drops.
func (p *SignalPipeline) Process(ctx context.Context, cand models.Candidate) *models.Verdict {
	if cand.ID == "" {
		cand.ID = uuid.NewString()
	}
	if cand.ReceivedAt.IsZero() {
		cand.ReceivedAt = p.now()
	}

	if cand.Side == "" && cand.Text != "" && p.scorer != nil {
		sc, err := p.scorer.Score(ctx, cand.Text)
		if err != nil {
			p.logger.Warn("classifier unavailable",
				xlogger.String("trace_id", cand.ID),
				xlogger.Error(err),
			)
			p.metrics.RecordError("scorer")
		} else {
			cand.Side = sideFromLabel(sc.Label)
			cand.Confidence = sc.Confidence
			cand.ScoreReasons = sc.Reasons
		}
	}

	switch cand.Side {
	case models.SideBuy, models.SideSell:
	case models.SideNoTrade:
		p.metrics.RecordDrop("no_trade")
		p.logger.Debug("dropping NO-TRADE candidate", xlogger.String("trace_id", cand.ID), xlogger.String("symbol", cand.Symbol))
		return nil
	default:
		p.metrics.RecordDrop("unscorable")
		p.logger.Warn("dropping candidate without direction",
			xlogger.String("trace_id", cand.ID),
			xlogger.String("symbol", cand.Symbol),
			xlogger.String("source", cand.SourceChannel),
		)
		return nil
	}

	v := p.ctrl.Admit(ctx, cand)

	if v.Eligible && !p.dryRun {
		intent := &models.OrderIntent{
			TraceID:    cand.ID,
			Symbol:     cand.Symbol,
			Side:       cand.Side,
			Notional:   v.Risk.Notional,
			StopLoss:   v.Risk.StopLoss,
			TakeProfit: v.Risk.TakeProfit,
			Price:      v.Risk.Entry,
		}
		orderID, err := p.router.Route(ctx, intent)
		if err != nil {
			// Routing failure is the executor's problem; the verdict and its
			// event already exist and stay as they are.
			p.logger.Error("order routing failed",
				xlogger.String("trace_id", cand.ID),
				xlogger.Error(err),
			)
			p.metrics.RecordError("route")
		} else {
			p.logger.Info("order routed",
				xlogger.String("trace_id", cand.ID),
				xlogger.String("order_id", orderID),
				xlogger.String("symbol", cand.Symbol),
				xlogger.Float64("notional", v.Risk.Notional),
			)
		}
	}

	return &v
}

func sideFromLabel(label string) models.Side {
	switch label {
	case "long", "buy":
		return models.SideBuy
	case "short", "sell":
		return models.SideSell
	default:
		return models.SideNoTrade
	}
}
