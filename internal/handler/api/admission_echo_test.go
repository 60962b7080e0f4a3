package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/guard"
	"SignalGate/internal/policy"
	"SignalGate/internal/risk"
	"SignalGate/internal/service/state"
	"SignalGate/internal/usecase"
	xlogger "SignalGate/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type nopMetrics struct{}

func (nopMetrics) RecordDecision(symbol, reason string, eligible bool) {}
func (nopMetrics) RecordCheck(name string, passed bool)                {}
func (nopMetrics) RecordDrop(reason string)                            {}
func (nopMetrics) RecordDailyPnL(value float64)                        {}
func (nopMetrics) RecordError(kind string)                             {}
func (nopMetrics) RecordLatency(op string, seconds float64)            {}

type capturePublisher struct {
	mu     sync.Mutex
	events []*models.DecisionEvent
}

func (p *capturePublisher) Publish(_ context.Context, ev *models.DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type stubMarket struct {
	quote *models.Quote
}

func (m *stubMarket) Snapshot(_ context.Context, _ string) (*models.Quote, error) {
	return m.quote, nil
}

type captureRouter struct {
	mu      sync.Mutex
	intents []*models.OrderIntent
}

func (r *captureRouter) Route(_ context.Context, intent *models.OrderIntent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return fmt.Sprintf("ord-%d", len(r.intents)), nil
}

// stubArchive records the last query and returns canned events.
type stubArchive struct {
	events []*models.DecisionEvent

	symbol string
	from   time.Time
	to     time.Time
	limit  int
}

func (a *stubArchive) Init(context.Context) error                         { return nil }
func (a *stubArchive) Store(context.Context, *models.DecisionEvent) error { return nil }
func (a *stubArchive) Health(context.Context) error                       { return nil }
func (a *stubArchive) Close() error                                       { return nil }

func (a *stubArchive) Query(_ context.Context, symbol string, from, to time.Time, limit int) ([]*models.DecisionEvent, error) {
	a.symbol, a.from, a.to, a.limit = symbol, from, to, limit
	return a.events, nil
}

type apiEnv struct {
	e      *echo.Echo
	pub    *capturePublisher
	router *captureRouter
	market *stubMarket
	store  domrepo.StateStore
	pols   *policy.Store
	guards *guard.ConfigStore
}

// newAPIEnv wires real policy, guard and admission components behind the echo
// handlers, with only the edges (market, publisher, router) stubbed. A nil st
// falls back to the in-memory store; archive is handed to the handlers as-is.
func newAPIEnv(t *testing.T, st domrepo.StateStore, archive domrepo.AuditStorage) *apiEnv {
	t.Helper()
	log := testLogger(t)
	if st == nil {
		st = state.NewMemoryStore()
	}

	pols, err := policy.NewStore(nil, models.PolicyModerate)
	if err != nil {
		t.Fatalf("policy store: %v", err)
	}
	guards, err := guard.NewConfigStore(models.GuardConfig{
		Enabled:             true,
		ConfidenceThreshold: 0.5,
		CooldownMinutes:     10,
	})
	if err != nil {
		t.Fatalf("guard config: %v", err)
	}

	pub := &capturePublisher{}
	em := usecase.NewDecisionEmitter(pub, nil, nopMetrics{}, "kafka")
	market := &stubMarket{quote: &models.Quote{Symbol: "BTCUSDT", Price: 100, ATR: 2, Timestamp: time.Now()}}
	ctrl := usecase.NewAdmissionController(
		pols, guards, risk.New(), guard.NewChain(st, log),
		market, em, nopMetrics{}, log, false,
	)
	router := &captureRouter{}
	pipe := usecase.NewSignalPipeline(ctrl, nil, router, nopMetrics{}, log, false)

	e := echo.New()
	NewRoutes(
		NewAdmissionEchoHandler(log, pipe, archive),
		NewControlEchoHandler(log, pols, guards, st, archive),
	).RegisterRoutes(e)

	return &apiEnv{e: e, pub: pub, router: router, market: market, store: st, pols: pols, guards: guards}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Code == http.StatusOK && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data: %v (data %q)", err, string(env.Data))
	}
}

func TestAdmitEndpointApproves(t *testing.T) {
	env := newAPIEnv(t, nil, nil)

	rec, got := doJSON(t, env.e, http.MethodPost, "/api/signals",
		`{"symbol":"BTCUSDT","side":"BUY","confidence":0.9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("http status = %d", rec.Code)
	}
	if got.Status != http.StatusOK {
		t.Fatalf("envelope status = %d", got.Status)
	}

	var resp struct {
		TraceID    string  `json:"trace_id"`
		Eligible   bool    `json:"eligible"`
		Reason     string  `json:"reason"`
		StopLoss   float64 `json:"stop_loss"`
		TakeProfit float64 `json:"take_profit"`
		Notional   float64 `json:"notional"`
		Checks     []struct {
			Name string `json:"name"`
		} `json:"checks"`
		DryRun bool `json:"dry_run"`
	}
	decodeData(t, got, &resp)

	if !resp.Eligible || resp.Reason != "approved" {
		t.Fatalf("verdict = %+v", resp)
	}
	if resp.TraceID == "" {
		t.Fatalf("expected generated trace id")
	}
	if resp.StopLoss != 97 || resp.TakeProfit != 105 || resp.Notional != 100 {
		t.Fatalf("risk = SL %v TP %v notional %v", resp.StopLoss, resp.TakeProfit, resp.Notional)
	}
	if len(resp.Checks) == 0 {
		t.Fatalf("expected check results")
	}
	if resp.DryRun {
		t.Fatalf("dry run should be off")
	}
	if env.pub.count() != 1 {
		t.Fatalf("decision events = %d, want 1", env.pub.count())
	}
	env.router.mu.Lock()
	defer env.router.mu.Unlock()
	if len(env.router.intents) != 1 {
		t.Fatalf("routed intents = %d, want 1", len(env.router.intents))
	}
	if env.router.intents[0].TraceID != resp.TraceID {
		t.Fatalf("intent trace %q != response trace %q", env.router.intents[0].TraceID, resp.TraceID)
	}
}

func TestAdmitEndpointRejectsInvalidBody(t *testing.T) {
	env := newAPIEnv(t, nil, nil)

	_, got := doJSON(t, env.e, http.MethodPost, "/api/signals", `{"confidence":0.9}`)
	if got.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want 400", got.Status)
	}
	if env.pub.count() != 0 {
		t.Fatalf("invalid request must not emit decisions")
	}
}

func TestAdmitEndpointNoTradableDirection(t *testing.T) {
	env := newAPIEnv(t, nil, nil)

	// Text-only candidate with no scorer configured: dropped before admission.
	_, got := doJSON(t, env.e, http.MethodPost, "/api/signals",
		`{"symbol":"BTCUSDT","text":"to the moon","confidence":0.9}`)
	if got.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want 400", got.Status)
	}
	if env.pub.count() != 0 {
		t.Fatalf("dropped candidate must not emit decisions")
	}
}

func TestDecisionsWithoutArchive(t *testing.T) {
	env := newAPIEnv(t, nil, nil)

	_, got := doJSON(t, env.e, http.MethodGet, "/api/decisions?symbol=BTCUSDT", "")
	if got.Status != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want 404", got.Status)
	}
}

func TestDecisionsQueriesArchive(t *testing.T) {
	archive := &stubArchive{events: []*models.DecisionEvent{
		{TraceID: "d-1", Symbol: "BTCUSDT"},
		{TraceID: "d-2", Symbol: "BTCUSDT"},
	}}
	env := newAPIEnv(t, nil, archive)

	_, got := doJSON(t, env.e, http.MethodGet,
		"/api/decisions?symbol=BTCUSDT&from=2026-08-24T00:00:00Z&to=2026-08-25T00:00:00Z&limit=50", "")
	if got.Status != http.StatusOK {
		t.Fatalf("envelope status = %d", got.Status)
	}

	var list struct {
		Rows  []models.DecisionEvent `json:"rows"`
		Total int64                  `json:"total"`
	}
	decodeData(t, got, &list)
	if len(list.Rows) != 2 || list.Total != 2 {
		t.Fatalf("rows = %d total = %d", len(list.Rows), list.Total)
	}
	if list.Rows[0].TraceID != "d-1" {
		t.Fatalf("unexpected first row %+v", list.Rows[0])
	}

	if archive.symbol != "BTCUSDT" || archive.limit != 50 {
		t.Fatalf("query args symbol=%q limit=%d", archive.symbol, archive.limit)
	}
	wantFrom := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if !archive.from.Equal(wantFrom) {
		t.Fatalf("from = %v, want %v", archive.from, wantFrom)
	}
}

func TestDecisionsRejectsMalformedRange(t *testing.T) {
	env := newAPIEnv(t, nil, &stubArchive{})

	_, got := doJSON(t, env.e, http.MethodGet, "/api/decisions?symbol=BTCUSDT&from=yesterday", "")
	if got.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want 400", got.Status)
	}
}
