package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	pkgkafka "SignalGate/pkg/kafka"
)

// KafkaSignalsHandler consumes candidate messages and feeds the pipeline.
type KafkaSignalsHandler struct {
	topic   string
	pipe    *SignalPipeline
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, pipe *SignalPipeline, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// incoming message schema: {id, symbol, side, confidence, sl, tp, size, source, text, ts}
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID         string   `json:"id"`
		Symbol     string   `json:"symbol"`
		Side       string   `json:"side"`
		Confidence float64  `json:"confidence"`
		SL         *float64 `json:"sl"`
		TP         *float64 `json:"tp"`
		Size       *float64 `json:"size"`
		Source     string   `json:"source"`
		Text       string   `json:"text"`
		TS         int64    `json:"ts"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}
	// E2E latency from event time to now (approx)
	if m.TS > 0 {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.TS, 0)).Seconds())
	}

	// Producers disagree on casing; "buy" and "BUY" mean the same thing.
	cand := models.Candidate{
		ID:            m.ID,
		Symbol:        m.Symbol,
		Side:          models.Side(strings.ToUpper(strings.TrimSpace(m.Side))),
		Confidence:    m.Confidence,
		HintSL:        m.SL,
		HintTP:        m.TP,
		HintSize:      m.Size,
		SourceChannel: m.Source,
		Text:          m.Text,
	}
	if m.TS > 0 {
		cand.ReceivedAt = time.Unix(m.TS, 0).UTC()
	}
	if cand.ID == "" {
		// Trace id from the message header, extracted by the consumer hook.
		cand.ID = pkgkafka.TraceIDFromContext(ctx)
	}
	if cand.SourceChannel == "" {
		cand.SourceChannel = "kafka"
	}

	h.pipe.Process(ctx, cand)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
