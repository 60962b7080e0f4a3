package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/usecase"
	pkgch "SignalGate/pkg/clickhouse"
	"SignalGate/pkg/config"
	xhttp "SignalGate/pkg/http"
	pkgkafka "SignalGate/pkg/kafka"
	applogger "SignalGate/pkg/logger"
)

// App encapsulates the entire application lifecycle: the inbound boundaries
// (websocket feed, Kafka consumer, HTTP API), the audit emitter and the
// shared state store, with one graceful shutdown path.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   *usecase.SignalCollector // nil when the feed is disabled
	consumer    *pkgkafka.Consumer       // nil when the consumer is disabled
	kh          pkgkafka.MessageHandler
	emitter     *usecase.DecisionEmitter
	store       domrepo.StateStore
	chClient    *pkgch.Client      // nil unless the clickhouse audit backend is active
	producer    *pkgkafka.Producer // nil when kafka is not configured
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	emitter *usecase.DecisionEmitter,
	store domrepo.StateStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		emitter:   emitter,
		store:     store,
		chClient:  chClient,
		producer:  producer,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.logger, 0),
	)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.logger.Error("signal feed collector error", applogger.Error(err))
			}
		}()
		a.logger.Info("signal feed collector started",
			applogger.String("url", a.cfg.Feed.WebSocketURL),
			applogger.Strings("channels", a.cfg.Feed.Channels),
		)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("admission api started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("dry_run", a.cfg.Trading.DryRun),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first so in-flight admissions can finish emitting,
// then releases the backends.
func (a *App) shutdown(ctx context.Context) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.emitter != nil {
		if err := a.emitter.Close(); err != nil {
			a.logger.Warn("decision emitter close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("state store close error", applogger.Error(err))
		}
	}

	// Flush aggregated error logs to the ops topic, then release the
	// producer they ship through.
	a.logger.RemoveCollector()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
