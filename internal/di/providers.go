package di

import (
	"context"
	"fmt"
	"time"

	domrepo "StoreSales/internal/domain/repository"
	domsvc "StoreSales/internal/domain/service"
	"StoreSales/internal/handler/api"
	internalrepo "StoreSales/internal/repository"
	"StoreSales/internal/service/ratelimit"
	"StoreSales/internal/services/modelsvc"
	"StoreSales/internal/usecase"
	"StoreSales/pkg/cache"
	pkgch "StoreSales/pkg/clickhouse"
	"StoreSales/pkg/config"
	xhttp "StoreSales/pkg/http"
	pkgkafka "StoreSales/pkg/kafka"
	applogger "StoreSales/pkg/logger"
	"StoreSales/pkg/metrics"
	"StoreSales/pkg/queue"
	"StoreSales/pkg/server"
	"StoreSales/pkg/util"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideClickHouseClient connects and initializes the schema. Returns nil
// when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSalesStore wraps the ClickHouse client. Returns nil without one.
func ProvideSalesStore(ch *pkgch.Client, l *applogger.Logger) domrepo.SalesStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHSalesStore(ch, l)
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
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

// ProvideForecastPublisher returns nil unless forecast events are enabled.
func ProvideForecastPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.ForecastPublisher {
	if producer == nil || !cfg.Forecast.PublishEvents {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideKafkaConsumer creates the sales ingestion consumer. Returns nil when
// the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
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

// ProvideKafkaSalesHandler returns nil without a sales store.
func ProvideKafkaSalesHandler(cfg *config.Config, store domrepo.SalesStore, m domrepo.Metrics) *usecase.KafkaSalesHandler {
	if store == nil {
		return nil
	}
	return usecase.NewKafkaSalesHandler(cfg.Kafka.SalesTopic, store, m)
}

// ProvideSalesModel creates the model service client.
func ProvideSalesModel(cfg *config.Config) domsvc.SalesModel {
	return modelsvc.NewHTTPSalesModel(cfg)
}

// ProvideArtifactStore creates the file artifact store.
func ProvideArtifactStore(cfg *config.Config) *internalrepo.FileArtifactStore {
	return internalrepo.NewFileArtifactStore(cfg.Artifacts.Dir)
}

// ProvideArtifactWriter binds the file store as the training output.
func ProvideArtifactWriter(store *internalrepo.FileArtifactStore) domrepo.ArtifactWriter {
	return store
}

// ProvideArtifactLoader shares one loaded set across requests unless
// artifacts.cache is off.
func ProvideArtifactLoader(cfg *config.Config, store *internalrepo.FileArtifactStore) domrepo.ArtifactLoader {
	if !cfg.Artifacts.Cache {
		return store
	}
	return internalrepo.NewCachedArtifactLoader(store)
}

// ProvideCache builds the response cache: memory, layered over Redis when
// enabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.Memory.MaxSize),
		cache.WithMemoryCleanup(cfg.Cache.Memory.CleanupInterval),
	)
	if !cfg.Cache.Redis.Enabled {
		return mem, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(mem, rc), nil
}

// ProvideRateLimiter creates the per-client forecast limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Forecast.RateLimitRPS, cfg.Forecast.RateLimitBurst)
}

// ProvideForecastComposer creates the forecast use case.
func ProvideForecastComposer(
	loader domrepo.ArtifactLoader,
	model domsvc.SalesModel,
	m domrepo.Metrics,
	l *applogger.Logger,
	pub domrepo.ForecastPublisher,
) *usecase.ForecastComposer {
	var opts []usecase.ComposerOption
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewForecastComposer(loader, model, m, l, opts...)
}

// ProvideTrainQueue starts the Redis retraining queue. Returns nil unless
// training.queue is enabled. A finished run invalidates loaded artifacts and
// cached responses of this instance.
func ProvideTrainQueue(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.SalesStore,
	model domsvc.SalesModel,
	writer domrepo.ArtifactWriter,
	m domrepo.Metrics,
	opts usecase.TrainOptions,
	loader domrepo.ArtifactLoader,
	c cache.Service,
) (*queue.RedisQueue, error) {
	qc := cfg.Training.Queue
	if !qc.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("training queue requires clickhouse.enabled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	ql := l.With(applogger.String("component", "train_queue"))
	q := queue.NewRedisQueue(ql, queue.Config{
		Workers:    qc.Workers,
		RetryLimit: qc.RetryLimit,
		RetryDelay: qc.RetryDelay,
		JobTimeout: qc.JobTimeout,
	}, client, queue.WithKeyPrefix(qc.Prefix))

	trainer := usecase.NewTrainer(store, model, writer, m, l, opts)
	q.RegisterJob(usecase.NewRetrainJob(trainer, ql, func(ctx context.Context, _ *usecase.TrainReport) {
		if r, ok := loader.(api.Reloader); ok {
			r.Invalidate()
		}
		if err := api.PurgeForecastCache(ctx, c); err != nil {
			ql.Warn("forecast cache purge after retrain failed", applogger.Error(err))
		}
	}))

	if err := q.Start(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("train queue: %w", err)
	}
	return q, nil
}

// ProvideForecastHandler creates the HTTP handler with its cache, limiter
// and health checks.
func ProvideForecastHandler(
	cfg *config.Config,
	l *applogger.Logger,
	composer *usecase.ForecastComposer,
	c cache.Service,
	limiter *ratelimit.Limiter,
	loader domrepo.ArtifactLoader,
	store domrepo.SalesStore,
	tq *queue.RedisQueue,
) *api.ForecastEchoHandler {
	opts := []api.HandlerOption{
		api.WithCache(c, cfg.Forecast.CacheTTL),
		api.WithRateLimiter(limiter),
		api.WithHealthCheck("artifacts", func(ctx context.Context) error {
			_, err := loader.Load(ctx)
			return err
		}),
	}
	if r, ok := loader.(api.Reloader); ok {
		opts = append(opts, api.WithReloader(r))
	}
	if store != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", store.Health))
	}
	if tq != nil {
		opts = append(opts, api.WithTrainQueue(tq))
	}
	return api.NewForecastEchoHandler(l, composer, opts...)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideApp assembles the application and registers shutdown order.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSalesHandler,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	c cache.Service,
	tq *queue.RedisQueue,
) *server.App {
	app := server.New(cfg, l, srv)
	if consumer != nil && kh != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
		app.WithConsumer(consumer, kh)
	}
	if ch != nil {
		app.OnShutdown("clickhouse", ch.Close)
	}
	if tq != nil {
		// registered after clickhouse so it stops first
		app.OnShutdown("train queue", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			err := tq.Stop(ctx)
			if cerr := tq.Close(); err == nil {
				err = cerr
			}
			return err
		})
	}
	if producer != nil {
		app.OnShutdown("kafka producer", producer.Close)
		if cfg.Log.Collect.Enabled {
			l.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   cfg.Log.Collect.Interval,
				CountThreshold: cfg.Log.Collect.CountThreshold,
				Topic:          cfg.Kafka.LogsTopic,
				Publisher:      producer,
			})
			// registered last so it flushes before the producer closes
			app.OnShutdown("log collector", func() error {
				l.RemoveCollector()
				return nil
			})
		}
	}
	app.OnShutdown("cache", c.Close)
	return app
}

// TrainJob is a configured training run and the clients it owns.
type TrainJob struct {
	Trainer *usecase.Trainer
	Logger  *applogger.Logger
	ch      *pkgch.Client
}

// Close releases the ClickHouse connection.
func (j *TrainJob) Close() error {
	if j.ch != nil {
		return j.ch.Close()
	}
	return nil
}

// ProvideTrainOptions maps the training section of the config.
func ProvideTrainOptions(cfg *config.Config) (usecase.TrainOptions, error) {
	from, to, err := util.ParseDateRange(cfg.Training.From, cfg.Training.To)
	if err != nil {
		return usecase.TrainOptions{}, fmt.Errorf("training range: %w", err)
	}
	return usecase.TrainOptions{
		From:         from,
		To:           to,
		TestDays:     cfg.Training.TestDays,
		OilLags:      cfg.Training.OilLags,
		HampelWindow: cfg.Training.HampelWindow,
		HampelSigma:  cfg.Training.HampelSigma,
	}, nil
}

// ProvideTrainJob requires clickhouse: training reads the raw tables.
func ProvideTrainJob(
	l *applogger.Logger,
	ch *pkgch.Client,
	store domrepo.SalesStore,
	model domsvc.SalesModel,
	writer domrepo.ArtifactWriter,
	m domrepo.Metrics,
	opts usecase.TrainOptions,
) (*TrainJob, error) {
	if store == nil {
		return nil, fmt.Errorf("training requires clickhouse.enabled")
	}
	return &TrainJob{
		Trainer: usecase.NewTrainer(store, model, writer, m, l, opts),
		Logger:  l,
		ch:      ch,
	}, nil
}
