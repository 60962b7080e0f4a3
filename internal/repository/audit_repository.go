package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"
	pkgkafka "SignalGate/pkg/kafka"
)

// ClickHouseAuditStore implements AuditStorage for ClickHouse.
type ClickHouseAuditStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditStore creates ClickHouse decision storage.
func NewClickHouseAuditStore(db *sql.DB, table string) repository.AuditStorage {
	return &ClickHouseAuditStore{db: db, table: table}
}

func (s *ClickHouseAuditStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseAuditStore) Store(ctx context.Context, ev *models.DecisionEvent) error {
	if ev == nil {
		return fmt.Errorf("decision event is nil")
	}
	checks, err := json.Marshal(ev.Checks)
	if err != nil {
		return fmt.Errorf("marshal checks: %w", err)
	}
	reasons, err := json.Marshal(ev.ScoreReasons)
	if err != nil {
		return fmt.Errorf("marshal score reasons: %w", err)
	}

	q := fmt.Sprintf("INSERT INTO %s (trace_id, ts, symbol, side, source, confidence, eligible, reason, policy, stop_loss, take_profit, notional, requested_notional, clamped, dry_run, checks, score_reasons, received_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err = s.db.ExecContext(ctx, q,
		ev.TraceID,
		ev.EvaluatedAt,
		ev.Symbol,
		string(ev.Side),
		ev.Source,
		ev.Confidence,
		boolToUint8(ev.Eligible),
		string(ev.Reason),
		string(ev.Policy),
		ev.StopLoss,
		ev.TakeProfit,
		ev.Notional,
		ev.RequestedNotional,
		boolToUint8(ev.Clamped),
		boolToUint8(ev.DryRun),
		string(checks),
		string(reasons),
		ev.ReceivedAt,
	)
	return err
}

func (s *ClickHouseAuditStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.DecisionEvent, error) {
	q := fmt.Sprintf("SELECT trace_id, ts, symbol, side, source, confidence, eligible, reason, policy, stop_loss, take_profit, notional, requested_notional, clamped, dry_run, checks, score_reasons, received_at FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.DecisionEvent
	for rows.Next() {
		var ev models.DecisionEvent
		var side, reason, policy string
		var eligible, clamped, dryRun uint8
		var checks, reasons string
		if err := rows.Scan(
			&ev.TraceID,
			&ev.EvaluatedAt,
			&ev.Symbol,
			&side,
			&ev.Source,
			&ev.Confidence,
			&eligible,
			&reason,
			&policy,
			&ev.StopLoss,
			&ev.TakeProfit,
			&ev.Notional,
			&ev.RequestedNotional,
			&clamped,
			&dryRun,
			&checks,
			&reasons,
			&ev.ReceivedAt,
		); err != nil {
			return nil, err
		}
		ev.Side = models.Side(side)
		ev.Reason = models.GuardReason(reason)
		ev.Policy = models.PolicyName(policy)
		ev.Eligible = eligible != 0
		ev.Clamped = clamped != 0
		ev.DryRun = dryRun != 0
		if checks != "" {
			if err := json.Unmarshal([]byte(checks), &ev.Checks); err != nil {
				return nil, fmt.Errorf("unmarshal checks for %s: %w", ev.TraceID, err)
			}
		}
		if reasons != "" && reasons != "null" {
			if err := json.Unmarshal([]byte(reasons), &ev.ScoreReasons); err != nil {
				return nil, fmt.Errorf("unmarshal score reasons for %s: %w", ev.TraceID, err)
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // Managed by pkg
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// KafkaAuditPublisher implements AuditPublisher for Kafka. Events are keyed by
// symbol so one symbol's decisions land on one partition in order.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates Kafka decision publisher.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) repository.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, ev *models.DecisionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev)
}

// Close is a no-op. The producer is shared with the ops log topic and its
// lifecycle belongs to the app.
func (p *KafkaAuditPublisher) Close() error {
	return nil
}
