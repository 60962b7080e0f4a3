package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type consumerConfig struct {
	brokers     []string
	groupID     string
	workerCount int
	bufferSize  int
	retryMax    int
	backoffMin  time.Duration
	backoffMax  time.Duration
	dlqTopic    string
	minBytes    int
	maxBytes    int
}

type ConsumerOption func(*consumerConfig)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *consumerConfig) { c.brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *consumerConfig) { c.groupID = groupID }
}

func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *consumerConfig) {
		if count > 0 {
			c.workerCount = count
		}
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithConsumerRetry bounds handler retries and the jittered backoff
// between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.retryMax = max
		c.backoffMin = backoffMin
		c.backoffMax = backoffMax
	}
}

// WithConsumerDLQ routes messages that exhaust their retries to a dead
// letter topic instead of blocking the partition.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *consumerConfig) { c.dlqTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *consumerConfig) {
		c.minBytes = minBytes
		c.maxBytes = maxBytes
	}
}

type fetched struct {
	topic string
	msg   kafka.Message
}

// Consumer fans messages from per-topic readers into a worker pool.
// Offsets are committed explicitly after handling, so a crash replays
// uncommitted messages rather than losing them. A per-partition lock
// keeps handling ordered within each partition even with many workers.
type Consumer struct {
	cfg      consumerConfig
	handlers map[string]MessageHandler
	hook     ConsumerHook

	readers map[string]*kafka.Reader
	dlq     *kafka.Writer

	ctx    context.Context
	cancel context.CancelFunc
	msgCh  chan fetched

	readerWG sync.WaitGroup
	workerWG sync.WaitGroup
	stopOnce sync.Once

	lockMu    sync.Mutex
	partLocks map[string]map[int]*sync.Mutex

	metrics *consumerMetrics
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := consumerConfig{
		groupID:     "signalgate",
		workerCount: 1,
		bufferSize:  10,
		retryMax:    3,
		backoffMin:  50 * time.Millisecond,
		backoffMax:  2 * time.Second,
		minBytes:    10e3,
		maxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		handlers:  make(map[string]MessageHandler),
		hook:      noopHook{},
		readers:   make(map[string]*kafka.Reader),
		ctx:       ctx,
		cancel:    cancel,
		msgCh:     make(chan fetched, cfg.bufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		metrics:   newConsumerMetrics(),
	}
	if cfg.dlqTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler binds a handler to its topic. The first registration
// for a topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Printf("kafka consumer: handler already registered for topic %s", topic)
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook installs lifecycle hooks around message handling.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start spins up one reader per registered topic plus the worker pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.brokers,
			Topic:    topic,
			GroupID:  c.cfg.groupID,
			MinBytes: c.cfg.minBytes,
			MaxBytes: c.cfg.maxBytes,
		})
		c.readers[topic] = reader

		c.readerWG.Add(1)
		go c.readLoop(topic, reader)
	}

	for i := 0; i < c.cfg.workerCount; i++ {
		c.workerWG.Add(1)
		go c.worker()
	}

	log.Printf("kafka consumer: started topics=%d workers=%d group=%s",
		len(c.readers), c.cfg.workerCount, c.cfg.groupID)
	return nil
}

// Stop drains the pipeline in order: readers first, then workers, then
// the network resources. The context bounds how long each wait may take.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stopping")
		c.cancel()

		if err := await(ctx, &c.readerWG); err != nil {
			stopErr = fmt.Errorf("waiting for readers: %w", err)
			return
		}
		close(c.msgCh)
		if err := await(ctx, &c.workerWG); err != nil {
			stopErr = fmt.Errorf("waiting for workers: %w", err)
			return
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("kafka consumer: closing reader for %s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: closing dlq writer: %v", err)
			}
		}
		log.Println("kafka consumer: stopped")
	})
	return stopErr
}

func await(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop fetches messages and hands them to the workers. The blocking
// send is the backpressure: when workers fall behind, fetching stalls and
// the broker buffers for us.
func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.readerWG.Done()

	for {
		msg, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("kafka consumer: fetch from %s: %v", topic, err)
			select {
			case <-time.After(time.Second):
			case <-c.ctx.Done():
				return
			}
			continue
		}

		select {
		case c.msgCh <- fetched{topic: topic, msg: msg}:
			c.metrics.queued(topic, len(c.msgCh), cap(c.msgCh))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workerWG.Done()
	for f := range c.msgCh {
		c.handleOne(f.topic, f.msg)
	}
}

func (c *Consumer) handleOne(topic string, msg kafka.Message) {
	handler, ok := c.handlers[topic]
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			// No commit after a panic: the message comes back on the
			// next fetch, which keeps the bug visible.
			log.Printf("kafka consumer: panic handling %s: %v", topic, r)
		}
	}()

	lock := c.partitionLock(topic, msg.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := c.handleWithRetry(topic, msg, handler)
	if err != nil {
		c.hook.OnError(c.ctx, topic, msg, msg.Value, err)
		log.Printf("kafka consumer: handling on %s failed after retries: %v", topic, err)

		if c.dlq != nil {
			if dlqErr := c.deadLetter(topic, msg); dlqErr != nil {
				// Leave the offset uncommitted so the message is
				// redelivered rather than silently lost.
				log.Printf("kafka consumer: dlq write for %s: %v", topic, dlqErr)
				return
			}
		}
		// Without a DLQ the message is dropped after logging; an
		// unprocessable signal is worthless once it goes stale.
	}

	c.commit(topic, msg)
	c.metrics.handled(topic, time.Since(start))
}

func (c *Consumer) handleWithRetry(topic string, msg kafka.Message, handler MessageHandler) error {
	for attempt := 1; ; attempt++ {
		hctx, hmsg, hdata, hookErr := c.hook.BeforeHandle(c.ctx, topic, msg, msg.Value)
		if hookErr != nil {
			return hookErr
		}

		err := handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, topic, hmsg, hdata, err)
		if err == nil || attempt > c.cfg.retryMax {
			return err
		}
		c.hook.OnError(hctx, topic, hmsg, hdata, err)

		select {
		case <-time.After(jitterBackoff(c.cfg.backoffMin, c.cfg.backoffMax, attempt)):
		case <-c.ctx.Done():
			return err
		}
	}
}

func (c *Consumer) deadLetter(topic string, msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.dlqTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}},
	})
}

// commit acknowledges the offset with bounded retries. It uses a fresh
// context so commits still land while the consumer is shutting down.
func (c *Consumer) commit(topic string, msg kafka.Message) {
	reader := c.readers[topic]
	if reader == nil {
		return
	}

	const attempts = 3
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(jitterBackoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("kafka consumer: commit on %s failed after %d attempts: %v", topic, attempts, err)
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	parts, ok := c.partLocks[topic]
	if !ok {
		parts = make(map[int]*sync.Mutex)
		c.partLocks[topic] = parts
	}
	lock, ok := parts[partition]
	if !ok {
		lock = &sync.Mutex{}
		parts[partition] = lock
	}
	return lock
}

func jitterBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt > 16 {
		attempt = 16
	}
	d := min << (attempt - 1)
	if d <= 0 || d > max {
		d = max
	}
	// Up to half the delay is shaved off so retrying consumers spread out.
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

type consumerMetrics struct {
	queueDepth    *prometheus.GaugeVec
	queueFullness *prometheus.GaugeVec
	handleLatency *prometheus.HistogramVec
}

var (
	consMetrics     *consumerMetrics
	consMetricsOnce sync.Once
)

func newConsumerMetrics() *consumerMetrics {
	consMetricsOnce.Do(func() {
		consMetrics = &consumerMetrics{
			queueDepth: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "signalgate_kafka_consumer_queue_depth",
					Help: "Messages waiting in the consumer queue",
				},
				[]string{"topic"},
			),
			queueFullness: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "signalgate_kafka_consumer_queue_fullness",
					Help: "Queue utilization ratio (len/cap)",
				},
				[]string{"topic"},
			),
			handleLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "signalgate_kafka_consumer_handle_seconds",
					Help: "Handling time per message",
				},
				[]string{"topic"},
			),
		}
	})
	return consMetrics
}

func (m *consumerMetrics) queued(topic string, depth, capacity int) {
	m.queueDepth.WithLabelValues(topic).Set(float64(depth))
	if capacity > 0 {
		m.queueFullness.WithLabelValues(topic).Set(float64(depth) / float64(capacity))
	}
}

func (m *consumerMetrics) handled(topic string, elapsed time.Duration) {
	m.handleLatency.WithLabelValues(topic).Observe(elapsed.Seconds())
}
