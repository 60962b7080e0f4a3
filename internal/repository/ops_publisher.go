package repository

import (
	"context"

	pkgkafka "SignalGate/pkg/kafka"
	xlogger "SignalGate/pkg/logger"
)

// KafkaOpsPublisher adapts the Kafka producer to the log collector's
// Publisher so aggregated error logs reach the ops topic. This is the
// operator-alert surface for conditions like an invalid active policy.
type KafkaOpsPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaOpsPublisher(producer *pkgkafka.Producer) *KafkaOpsPublisher {
	return &KafkaOpsPublisher{producer: producer}
}

func (p *KafkaOpsPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

var _ xlogger.Publisher = (*KafkaOpsPublisher)(nil)
