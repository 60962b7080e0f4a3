package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a SignalStream backed by a signal aggregator WebSocket.
type Client struct {
	token          string
	websocketURL   string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new aggregator SignalStream.
func New(token, websocketURL string, channels []string, reconnectDelay, pingInterval time.Duration) domrepo.SignalStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		channels:       channels,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("feed: connected")
	return nil
}

// Subscribe subscribes to configured channels.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, ch := range c.channels {
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		log.Printf("feed: subscribed %s", ch)
	}
	return nil
}

type wsSignal struct {
	ID         string   `json:"id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Confidence float64  `json:"confidence"`
	SL         *float64 `json:"sl"`
	TP         *float64 `json:"tp"`
	Size       *float64 `json:"size"`
	Source     string   `json:"source"`
	Text       string   `json:"text"`
	T          int64    `json:"ts"` // ms
}

type wsMessage struct {
	Type string     `json:"type"`
	Data []wsSignal `json:"data"`
}

// Read streams Candidate events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Candidate, <-chan error) {
	cands := make(chan *models.Candidate, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(cands)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-signal frames
					continue
				}
				if m.Type != "signal" {
					continue
				}
				for _, d := range m.Data {
					cand := &models.Candidate{
						ID:            d.ID,
						Symbol:        d.Symbol,
						Side:          models.Side(d.Side),
						Confidence:    d.Confidence,
						HintSL:        d.SL,
						HintTP:        d.TP,
						HintSize:      d.Size,
						SourceChannel: d.Source,
						Text:          d.Text,
					}
					if d.T > 0 {
						cand.ReceivedAt = time.UnixMilli(d.T).UTC()
					}
					select {
					case cands <- cand:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return cands, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
