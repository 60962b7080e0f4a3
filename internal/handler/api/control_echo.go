package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/guard"
	"SignalGate/internal/policy"
	xhttp "SignalGate/pkg/http"
	xlogger "SignalGate/pkg/logger"
)

// ControlEchoHandler covers the operator surface: policy switching, guard
// tuning, cooldown overrides, the manual breaker, and health.
type ControlEchoHandler struct {
	logger   *xlogger.Logger
	policies *policy.Store
	guards   *guard.ConfigStore
	store    domrepo.StateStore
	archive  domrepo.AuditStorage // nil unless the clickhouse audit backend is active
}

func NewControlEchoHandler(
	logger *xlogger.Logger,
	policies *policy.Store,
	guards *guard.ConfigStore,
	store domrepo.StateStore,
	archive domrepo.AuditStorage,
) *ControlEchoHandler {
	return &ControlEchoHandler{
		logger:   logger,
		policies: policies,
		guards:   guards,
		store:    store,
		archive:  archive,
	}
}

func (h *ControlEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/policy", h.GetPolicy)
	g.PUT("/policy", h.PutPolicy)
	g.GET("/guard", h.GetGuard)
	g.PATCH("/guard", h.PatchGuard)
	g.POST("/cooldowns", h.ForceCooldown)
	g.GET("/cooldowns/:symbol", h.CooldownStatus)
	g.DELETE("/cooldowns/:symbol", h.ClearCooldown)
	g.POST("/breaker/trip", h.TripBreaker)
	g.POST("/breaker/reset", h.ResetBreaker)
	e.GET("/healthz", h.Health)
}

type policyDTO struct {
	Name            string  `json:"name"`
	ATRMultSL       float64 `json:"atr_mult_sl"`
	ATRMultTP       float64 `json:"atr_mult_tp"`
	MinNotional     float64 `json:"min_notional"`
	MaxNotional     float64 `json:"max_notional"`
	DefaultNotional float64 `json:"default_notional"`
}

func toPolicyDTO(p models.RiskPolicy) policyDTO {
	return policyDTO{
		Name:            string(p.Name),
		ATRMultSL:       p.ATRMultSL,
		ATRMultTP:       p.ATRMultTP,
		MinNotional:     p.MinNotional,
		MaxNotional:     p.MaxNotional,
		DefaultNotional: p.DefaultNotional,
	}
}

type activePolicy struct {
	policyDTO
	Available []string `json:"available"`
}

func (h *ControlEchoHandler) GetPolicy(c echo.Context) error {
	return xhttp.SuccessResponse(c, activePolicy{
		policyDTO: toPolicyDTO(h.policies.Active()),
		Available: h.policies.Names(),
	})
}

func (h *ControlEchoHandler) PutPolicy(c echo.Context) error {
	req := &models.PolicyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.policies.Switch(req.Name)
	if err != nil {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{
			xhttp.NewAppError("ERR_UNKNOWN_POLICY", "name", err.Error(), http.StatusBadRequest),
		})
	}
	h.logger.Info("risk policy switched", xlogger.String("policy", req.Name))
	return xhttp.SuccessResponse(c, toPolicyDTO(p))
}

type guardDTO struct {
	Enabled             bool     `json:"enabled"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	MaxTradeSize        float64  `json:"max_trade_size"`
	MaxDailyLoss        float64  `json:"max_daily_loss"`
	CooldownMinutes     int      `json:"cooldown_minutes"`
	LatencyBudgetMS     int64    `json:"latency_budget_ms"`
	SymbolAllowlist     []string `json:"symbol_allowlist"`
	GlobalRatePerMin    float64  `json:"global_rate_per_min"`
	GlobalBurst         float64  `json:"global_burst"`
	SymbolRatePerMin    float64  `json:"symbol_rate_per_min"`
	SymbolBurst         float64  `json:"symbol_burst"`
}

func toGuardDTO(g models.GuardConfig) guardDTO {
	return guardDTO{
		Enabled:             g.Enabled,
		ConfidenceThreshold: g.ConfidenceThreshold,
		MaxTradeSize:        g.MaxTradeSize,
		MaxDailyLoss:        g.MaxDailyLoss,
		CooldownMinutes:     g.CooldownMinutes,
		LatencyBudgetMS:     g.LatencyBudgetMS,
		SymbolAllowlist:     g.SymbolAllowlist,
		GlobalRatePerMin:    g.GlobalRatePerMin,
		GlobalBurst:         g.GlobalBurst,
		SymbolRatePerMin:    g.SymbolRatePerMin,
		SymbolBurst:         g.SymbolBurst,
	}
}

// guardState adds the live breaker flag, which lives in the state store
// rather than config; it is readable here but only settable through the
// breaker endpoints.
type guardState struct {
	guardDTO
	CircuitBreakerTripped bool `json:"circuit_breaker_tripped"`
}

func (h *ControlEchoHandler) GetGuard(c echo.Context) error {
	tripped, err := h.store.BreakerTripped(c.Request().Context())
	if err != nil {
		return h.stateError(c, err)
	}
	return xhttp.SuccessResponse(c, guardState{
		guardDTO:              toGuardDTO(h.guards.Snapshot()),
		CircuitBreakerTripped: tripped,
	})
}

func (h *ControlEchoHandler) PatchGuard(c echo.Context) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	var req models.GuardPatchRequest
	if err := dec.Decode(&req); err != nil {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{
			xhttp.BadRequestErrorf("guard patch: %v", err),
		})
	}
	merged, err := h.guards.Update(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{
			xhttp.NewAppError("ERR_INVALID_GUARD_FIELD", "", err.Error(), http.StatusBadRequest),
		})
	}
	h.logger.Info("guard config updated",
		xlogger.Bool("enabled", merged.Enabled),
		xlogger.Float64("confidence_threshold", merged.ConfidenceThreshold),
	)
	return xhttp.SuccessResponse(c, toGuardDTO(merged))
}

type cooldownStatus struct {
	Symbol           string  `json:"symbol"`
	Active           bool    `json:"active"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

func (h *ControlEchoHandler) ForceCooldown(c echo.Context) error {
	req := &models.CooldownRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d := time.Duration(req.Minutes) * time.Minute
	if err := h.store.ForceCooldown(c.Request().Context(), req.Symbol, d); err != nil {
		return h.stateError(c, err)
	}
	h.logger.Info("cooldown forced",
		xlogger.String("symbol", req.Symbol),
		xlogger.Int("minutes", req.Minutes),
	)
	return xhttp.SuccessResponse(c, cooldownStatus{
		Symbol:           req.Symbol,
		Active:           true,
		RemainingSeconds: d.Seconds(),
	})
}

func (h *ControlEchoHandler) CooldownStatus(c echo.Context) error {
	symbol := c.Param("symbol")
	remaining, err := h.store.CooldownRemaining(c.Request().Context(), symbol)
	if err != nil {
		return h.stateError(c, err)
	}
	return xhttp.SuccessResponse(c, cooldownStatus{
		Symbol:           symbol,
		Active:           remaining > 0,
		RemainingSeconds: remaining.Seconds(),
	})
}

func (h *ControlEchoHandler) ClearCooldown(c echo.Context) error {
	symbol := c.Param("symbol")
	if err := h.store.ClearCooldown(c.Request().Context(), symbol); err != nil {
		return h.stateError(c, err)
	}
	h.logger.Info("cooldown cleared", xlogger.String("symbol", symbol))
	return xhttp.NoContentResponse(c)
}

type breakerState struct {
	Tripped bool `json:"tripped"`
}

func (h *ControlEchoHandler) TripBreaker(c echo.Context) error {
	if err := h.store.TripBreaker(c.Request().Context()); err != nil {
		return h.stateError(c, err)
	}
	h.logger.Warn("circuit breaker tripped manually")
	return xhttp.SuccessResponse(c, breakerState{Tripped: true})
}

func (h *ControlEchoHandler) ResetBreaker(c echo.Context) error {
	if err := h.store.ResetBreaker(c.Request().Context()); err != nil {
		return h.stateError(c, err)
	}
	h.logger.Warn("circuit breaker reset manually")
	return xhttp.SuccessResponse(c, breakerState{Tripped: false})
}

type healthStatus struct {
	Status     string `json:"status"`
	StateStore string `json:"state_store"`
	Audit      string `json:"audit"`
}

// Health reports liveness of the stores. Unlike the API endpoints it writes
// the real HTTP status so load balancers can act on it.
func (h *ControlEchoHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	st := healthStatus{Status: "ok", StateStore: "up", Audit: "disabled"}
	if err := h.store.Health(ctx); err != nil {
		st.Status = "degraded"
		st.StateStore = "down"
	}
	if h.archive != nil {
		st.Audit = "up"
		if err := h.archive.Health(ctx); err != nil {
			st.Status = "degraded"
			st.Audit = "down"
		}
	}
	if st.Status != "ok" {
		return c.JSON(http.StatusServiceUnavailable, st)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *ControlEchoHandler) stateError(c echo.Context, err error) error {
	h.logger.Error("state store operation failed", xlogger.Error(err))
	if errors.Is(err, domrepo.ErrStateUnavailable) {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_STATE_UNAVAILABLE", "", "state store unavailable", http.StatusServiceUnavailable).WithError(err))
	}
	return xhttp.AppErrorResponse(c, err)
}
