package executor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	xhttp "SignalGate/pkg/http"
)

// HTTPRouter posts order intents to an external execution service.
type HTTPRouter struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPRouter builds a venue client with timeout and base URL.
func NewHTTPRouter(baseURL string, timeout time.Duration) *HTTPRouter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRouter{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type orderResp struct {
	OrderID string `json:"order_id"`
}

func (r *HTTPRouter) Route(ctx context.Context, in *models.OrderIntent) (string, error) {
	if r.baseURL == "" {
		return "", fmt.Errorf("executor http client not initialized")
	}
	var or orderResp
	err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    r.baseURL + "/orders",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: in,
	}, &or)
	if err != nil {
		return "", fmt.Errorf("post order: %w", err)
	}
	if or.OrderID == "" {
		return "", fmt.Errorf("venue returned no order id")
	}
	return or.OrderID, nil
}

var _ domrepo.OrderRouter = (*HTTPRouter)(nil)
