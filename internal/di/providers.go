package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"
	domsvc "SignalGate/internal/domain/service"
	"SignalGate/internal/guard"
	"SignalGate/internal/handler/api"
	"SignalGate/internal/policy"
	internalrepo "SignalGate/internal/repository"
	"SignalGate/internal/risk"
	"SignalGate/internal/service/executor"
	"SignalGate/internal/service/feed"
	"SignalGate/internal/service/market"
	"SignalGate/internal/service/scorer"
	"SignalGate/internal/service/state"
	"SignalGate/internal/usecase"
	pkgcache "SignalGate/pkg/cache"
	pkgch "SignalGate/pkg/clickhouse"
	"SignalGate/pkg/config"
	pkgkafka "SignalGate/pkg/kafka"
	applogger "SignalGate/pkg/logger"
	"SignalGate/pkg/metrics"
	"SignalGate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	logger, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStateStore creates the shared admission state backend.
func ProvideStateStore(cfg *config.Config) (repository.StateStore, error) {
	switch cfg.State.Backend {
	case "redis":
		store, err := state.NewRedisStore(state.RedisConfig{
			Addr:     cfg.State.Redis.Addr,
			Password: cfg.State.Redis.Password,
			DB:       cfg.State.Redis.DB,
			PoolSize: cfg.State.Redis.PoolSize,
			Prefix:   cfg.State.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("redis state store: %w", err)
		}
		return store, nil
	default:
		return state.NewMemoryStore(), nil
	}
}

// ProvidePolicyStore creates the risk policy store. Preset profiles can be
// overridden or extended from config.
func ProvidePolicyStore(cfg *config.Config) (*policy.Store, error) {
	profiles := policy.Presets()
	for name, p := range cfg.Risk.Profiles {
		profiles[models.PolicyName(name)] = models.RiskPolicy{
			Name:            models.PolicyName(name),
			ATRMultSL:       p.ATRMultSL,
			ATRMultTP:       p.ATRMultTP,
			MinNotional:     p.MinNotional,
			MaxNotional:     p.MaxNotional,
			DefaultNotional: p.DefaultNotional,
		}
	}
	store, err := policy.NewStore(profiles, models.PolicyName(cfg.Risk.Initial))
	if err != nil {
		return nil, fmt.Errorf("policy store: %w", err)
	}
	return store, nil
}

// ProvideGuardConfigStore seeds the runtime guard config from YAML.
func ProvideGuardConfigStore(cfg *config.Config) (*guard.ConfigStore, error) {
	store, err := guard.NewConfigStore(models.GuardConfig{
		Enabled:             cfg.Guard.Enabled,
		ConfidenceThreshold: cfg.Guard.ConfidenceThreshold,
		MaxTradeSize:        cfg.Guard.MaxTradeSize,
		MaxDailyLoss:        cfg.Guard.MaxDailyLoss,
		CooldownMinutes:     cfg.Guard.CooldownMinutes,
		LatencyBudgetMS:     cfg.Guard.LatencyBudgetMS,
		SymbolAllowlist:     cfg.Guard.SymbolAllowlist,
		GlobalRatePerMin:    cfg.Guard.GlobalRatePerMin,
		GlobalBurst:         cfg.Guard.GlobalBurst,
		SymbolRatePerMin:    cfg.Guard.SymbolRatePerMin,
		SymbolBurst:         cfg.Guard.SymbolBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("guard config: %w", err)
	}
	return store, nil
}

// ProvideRiskEngine creates the bracket calculator.
func ProvideRiskEngine() *risk.Engine {
	return risk.New()
}

// ProvideGuardChain creates the ordered guard evaluator.
func ProvideGuardChain(store repository.StateStore, logger *applogger.Logger) *guard.Chain {
	return guard.NewChain(store, logger)
}

// ProvideClickHouseClient creates a ClickHouse client when the decision
// archive runs on it. Other audit backends get a nil client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Audit.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".decisions (" +
			"trace_id String, ts DateTime64(3), symbol String, side String, source String, " +
			"confidence Float64, eligible UInt8, reason String, policy String, " +
			"stop_loss Float64, take_profit Float64, notional Float64, requested_notional Float64, " +
			"clamped UInt8, dry_run UInt8, checks String, score_reasons String, received_at DateTime64(3)" +
			") ENGINE=MergeTree ORDER BY (symbol, ts)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. Deployments with no brokers
// configured run without one (no decision topic, no ops log topic).
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditPublisher creates the Kafka decision publisher.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	if cfg.Audit.Backend != "kafka" || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic)
}

// ProvideAuditStorage creates the ClickHouse decision archive.
func ProvideAuditStorage(chClient *pkgch.Client, cfg *config.Config) repository.AuditStorage {
	if cfg.Audit.Backend != "clickhouse" || chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseAuditStore(chClient.DB(), cfg.ClickHouse.Database+".decisions")
}

// ProvideDecisionEmitter routes decision events to the active audit backend.
func ProvideDecisionEmitter(pub repository.AuditPublisher, store repository.AuditStorage, m repository.Metrics, cfg *config.Config) *usecase.DecisionEmitter {
	return usecase.NewDecisionEmitter(pub, store, m, cfg.Audit.Backend)
}

// ProvideQuoteCache creates the quote cache backend. The redis and layered
// backends share the state store's Redis instance.
func ProvideQuoteCache(cfg *config.Config) (pkgcache.Store, error) {
	switch cfg.Market.CacheBackend {
	case "", "memory":
		return pkgcache.NewMemory(), nil
	case "redis", "layered":
		rc, err := pkgcache.NewRedis(
			pkgcache.WithAddr(cfg.State.Redis.Addr),
			pkgcache.WithPassword(cfg.State.Redis.Password),
			pkgcache.WithDB(cfg.State.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("quote cache: %w", err)
		}
		if cfg.Market.CacheBackend == "layered" {
			return pkgcache.NewLayered(rc), nil
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown market cache backend %q", cfg.Market.CacheBackend)
	}
}

// ProvideMarketData creates the market data client behind a read-through
// cache. No URL means no market data; admissions then fail closed with
// no_risk_data.
func ProvideMarketData(cfg *config.Config, quotes pkgcache.Store) domsvc.MarketData {
	if cfg.Market.URL == "" {
		return nil
	}
	md := market.New(cfg.Market.URL, cfg.Market.Timeout)
	if cfg.Market.CacheTTL > 0 {
		return market.NewCached(md, quotes, cfg.Market.CacheTTL)
	}
	return md
}

// ProvideScorer creates the model scoring client. Optional; without it only
// signals that already carry a direction are admitted.
func ProvideScorer(cfg *config.Config) domsvc.SignalScorer {
	if cfg.Scorer.URL == "" {
		return nil
	}
	return scorer.New(cfg.Scorer.URL, cfg.Scorer.Timeout)
}

// ProvideLossGuardian creates the daily loss watchdog.
func ProvideLossGuardian(store repository.StateStore, m repository.Metrics, logger *applogger.Logger, guards *guard.ConfigStore) *usecase.LossGuardian {
	return usecase.NewLossGuardian(store, m, logger, guards)
}

// ProvideOrderRouter creates the execution venue. The paper router feeds its
// fills back into the loss guardian; an external venue reports PnL out of
// band.
func ProvideOrderRouter(cfg *config.Config, logger *applogger.Logger, guardian *usecase.LossGuardian) (repository.OrderRouter, error) {
	switch cfg.Executor.Mode {
	case "paper":
		router := executor.NewPaperRouter(logger)
		router.OnFill(guardian.OnReport)
		return router, nil
	case "http":
		return executor.NewHTTPRouter(cfg.Executor.URL, cfg.Executor.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown executor mode %q", cfg.Executor.Mode)
	}
}

// ProvideAdmissionController creates the admission decision core.
func ProvideAdmissionController(
	policies *policy.Store,
	guards *guard.ConfigStore,
	engine *risk.Engine,
	chain *guard.Chain,
	md domsvc.MarketData,
	emitter *usecase.DecisionEmitter,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.AdmissionController {
	return usecase.NewAdmissionController(policies, guards, engine, chain, md, emitter, m, logger, cfg.Trading.DryRun)
}

// ProvideSignalPipeline creates the score-admit-route pipeline.
func ProvideSignalPipeline(
	ctrl *usecase.AdmissionController,
	sc domsvc.SignalScorer,
	router repository.OrderRouter,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.SignalPipeline {
	return usecase.NewSignalPipeline(ctrl, sc, router, m, logger, cfg.Trading.DryRun)
}

// ProvideSignalStream creates the WebSocket signal feed when enabled.
func ProvideSignalStream(cfg *config.Config) repository.SignalStream {
	if !cfg.Feed.Enabled {
		return nil
	}
	return feed.New(
		cfg.Feed.Token,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Channels,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideSignalCollector pumps the feed into the pipeline.
func ProvideSignalCollector(stream repository.SignalStream, pipe *usecase.SignalPipeline, m repository.Metrics) *usecase.SignalCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewSignalCollector(stream, pipe, m)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaSignalsHandler registers the handler for the raw signals topic.
func ProvideKafkaSignalsHandler(pipe *usecase.SignalPipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, pipe, m)
}

// ProvideRoutes assembles the HTTP handlers.
func ProvideRoutes(
	logger *applogger.Logger,
	pipe *usecase.SignalPipeline,
	emitter *usecase.DecisionEmitter,
	policies *policy.Store,
	guards *guard.ConfigStore,
	store repository.StateStore,
) *api.Routes {
	archive := emitter.Archive()
	admission := api.NewAdmissionEchoHandler(logger, pipe, archive)
	control := api.NewControlEchoHandler(logger, policies, guards, store, archive)
	return api.NewRoutes(admission, control)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	emitter *usecase.DecisionEmitter,
	store repository.StateStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	routes *api.Routes,
) *server.App {
	// Propagate the trace_id header of inbound Kafka messages into handler contexts
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
			},
		})
	}

	var handler pkgkafka.MessageHandler
	if kh != nil {
		handler = kh
	}
	app := server.New(cfg, logger, collector, consumer, handler, emitter, store, chClient, producer)
	app.SetHTTPHandler(routes)

	// Aggregated error logs go to the ops topic when Kafka is available
	if producer != nil && cfg.Kafka.OpsTopic != "" {
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.OpsTopic,
			Publisher:      internalrepo.NewKafkaOpsPublisher(producer),
		})
	}
	return app
}
