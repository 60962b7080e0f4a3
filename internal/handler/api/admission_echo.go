package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	models "SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/usecase"
	xhttp "SignalGate/pkg/http"
	xlogger "SignalGate/pkg/logger"
)

// AdmissionEchoHandler exposes the synchronous admission boundary and the
// decision archive query.
type AdmissionEchoHandler struct {
	logger  *xlogger.Logger
	pipe    *usecase.SignalPipeline
	archive domrepo.AuditStorage // nil unless the clickhouse audit backend is active
}

func NewAdmissionEchoHandler(logger *xlogger.Logger, pipe *usecase.SignalPipeline, archive domrepo.AuditStorage) *AdmissionEchoHandler {
	return &AdmissionEchoHandler{logger: logger, pipe: pipe, archive: archive}
}

func (h *AdmissionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/signals", h.Admit)
	g.GET("/decisions", h.Decisions)
}

// admitResponse flattens the verdict the way decision events do, so the
// synchronous caller and the audit trail read the same shape.
type admitResponse struct {
	TraceID           string               `json:"trace_id"`
	Eligible          bool                 `json:"eligible"`
	Reason            models.GuardReason   `json:"reason"`
	StopLoss          float64              `json:"stop_loss,omitempty"`
	TakeProfit        float64              `json:"take_profit,omitempty"`
	Notional          float64              `json:"notional,omitempty"`
	RequestedNotional float64              `json:"requested_notional,omitempty"`
	Clamped           bool                 `json:"clamped,omitempty"`
	Checks            []models.CheckResult `json:"checks"`
	DryRun            bool                 `json:"dry_run"`
	EvaluatedAt       time.Time            `json:"evaluated_at"`
}

func (h *AdmissionEchoHandler) Admit(c echo.Context) error {
	req := &models.AdmitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cand := models.Candidate{
		ID:            req.TraceID,
		Symbol:        req.Symbol,
		Side:          models.Side(req.Side),
		Confidence:    req.Confidence,
		HintSL:        req.HintSL,
		HintTP:        req.HintTP,
		HintSize:      req.HintSize,
		SourceChannel: req.SourceChannel,
		Text:          req.Text,
		ReceivedAt:    time.Now(),
	}
	if cand.ID == "" {
		cand.ID = uuid.NewString()
	}

	v := h.pipe.Process(c.Request().Context(), cand)
	if v == nil {
		// Scored flat or unscorable: nothing to admit.
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{
			xhttp.BadRequestError("candidate has no tradable direction"),
		})
	}

	resp := admitResponse{
		TraceID:     cand.ID,
		Eligible:    v.Eligible,
		Reason:      v.Reason,
		Checks:      v.Checks,
		DryRun:      h.pipe.DryRun(),
		EvaluatedAt: v.EvaluatedAt,
	}
	if v.Risk != nil {
		resp.StopLoss = v.Risk.StopLoss
		resp.TakeProfit = v.Risk.TakeProfit
		resp.Notional = v.Risk.Notional
		resp.RequestedNotional = v.Risk.RequestedNotional
		resp.Clamped = v.Risk.Clamped
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *AdmissionEchoHandler) Decisions(c echo.Context) error {
	req := &models.DecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.archive == nil {
		return xhttp.NotFoundResponse(c, []*xhttp.AppError{
			xhttp.NotFoundError("decision archive requires the clickhouse audit backend"),
		})
	}

	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if req.From != "" {
		t, ok := xhttp.ParseTime(req.From)
		if !ok {
			return xhttp.BadRequestResponse(c, []*xhttp.AppError{
				xhttp.BadRequestErrorf("from: cannot parse %q", req.From),
			})
		}
		from = t
	}
	if req.To != "" {
		t, ok := xhttp.ParseTime(req.To)
		if !ok {
			return xhttp.BadRequestResponse(c, []*xhttp.AppError{
				xhttp.BadRequestErrorf("to: cannot parse %q", req.To),
			})
		}
		to = t
	}

	events, err := h.archive.Query(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("decision archive query failed",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}
