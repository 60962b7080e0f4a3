package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SignalGate/internal/domain/models"
	domsvc "SignalGate/internal/domain/service"
	xhttp "SignalGate/pkg/http"
)

// HTTPMarketData fetches quote and ATR context from the market data service.
// A 404 from the upstream means the symbol has no data and is not an error.
type HTTPMarketData struct {
	baseURL string
	client  *xhttp.Client
}

// New builds a market data client with timeout and base URL.
func New(baseURL string, timeout time.Duration) *HTTPMarketData {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPMarketData{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type quoteReq struct {
	Symbol string `json:"symbol"`
}

type quoteResp struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	ATR    float64 `json:"atr"`
	T      int64   `json:"ts"` // ms
}

func (m *HTTPMarketData) Snapshot(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.baseURL == "" {
		return nil, fmt.Errorf("market http client not initialized")
	}
	resp, err := m.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    m.baseURL + "/quote",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: quoteReq{Symbol: symbol},
	})
	if err != nil {
		return nil, fmt.Errorf("post quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("post quote: unexpected status %d", resp.StatusCode)
	}

	var qr quoteResp
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	q := &models.Quote{Symbol: qr.Symbol, Price: qr.Price, ATR: qr.ATR}
	if qr.T > 0 {
		q.Timestamp = time.UnixMilli(qr.T).UTC()
	}
	return q, nil
}

var _ domsvc.MarketData = (*HTTPMarketData)(nil)
