//go:build wireinject
// +build wireinject

package di

import (
	"StoreSales/pkg/config"
	"StoreSales/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up the serving application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideSalesStore,
		ProvideArtifactStore,
		ProvideArtifactLoader,
		ProvideArtifactWriter,
		ProvideForecastPublisher,

		// Model and use cases
		ProvideSalesModel,
		ProvideForecastComposer,
		ProvideKafkaSalesHandler,
		ProvideTrainOptions,
		ProvideTrainQueue,

		// HTTP
		ProvideRateLimiter,
		ProvideForecastHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeTrainJob wires up one training run.
func InitializeTrainJob(cfg *config.Config) (*TrainJob, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideSalesStore,
		ProvideSalesModel,
		ProvideArtifactStore,
		ProvideArtifactWriter,
		ProvideTrainOptions,
		ProvideTrainJob,
	)
	return &TrainJob{}, nil
}
