//go:build wireinject
// +build wireinject

package di

import (
	"SignalGate/pkg/config"
	"SignalGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideStateStore,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Control plane stores
		ProvidePolicyStore,
		ProvideGuardConfigStore,

		// Domain services
		ProvideRiskEngine,
		ProvideGuardChain,
		ProvideQuoteCache,
		ProvideMarketData,
		ProvideScorer,
		ProvideSignalStream,

		// Audit trail
		ProvideAuditPublisher,
		ProvideAuditStorage,
		ProvideDecisionEmitter,

		// Execution
		ProvideLossGuardian,
		ProvideOrderRouter,

		// Use cases
		ProvideAdmissionController,
		ProvideSignalPipeline,
		ProvideSignalCollector,
		ProvideKafkaConsumer,
		ProvideKafkaSignalsHandler,

		// HTTP surface
		ProvideRoutes,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
