package scorer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"SignalGate/internal/domain/models"
	domsvc "SignalGate/internal/domain/service"
	xhttp "SignalGate/pkg/http"
)

// HTTPScorer calls the external classifier service to label raw signal text.
type HTTPScorer struct {
	baseURL string
	client  *xhttp.Client
}

// New builds a scorer client with timeout and base URL.
func New(baseURL string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPScorer{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type scoreReq struct {
	Text string `json:"text"`
}

type scoreResp struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

func (s *HTTPScorer) Score(ctx context.Context, text string) (models.Score, error) {
	if s.baseURL == "" {
		return models.Score{}, fmt.Errorf("scorer http client not initialized")
	}
	var sr scoreResp
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    s.baseURL + "/score",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: scoreReq{Text: text},
	}, &sr)
	if err != nil {
		return models.Score{}, fmt.Errorf("post score: %w", err)
	}
	return models.Score{Label: sr.Label, Confidence: sr.Confidence, Reasons: sr.Reasons}, nil
}

var _ domsvc.SignalScorer = (*HTTPScorer)(nil)
