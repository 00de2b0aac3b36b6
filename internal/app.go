package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"

	logger_adapter "github.com/mgomezoc/valoranl-core/internal/adapters/logger"
	postgres_adapter "github.com/mgomezoc/valoranl-core/internal/adapters/postgres"
	rabbitmq_adapter "github.com/mgomezoc/valoranl-core/internal/adapters/rabbitmq"
	"github.com/mgomezoc/valoranl-core/internal/adapters/sources"
	"github.com/mgomezoc/valoranl-core/internal/configs"
	"github.com/mgomezoc/valoranl-core/internal/constants"
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
	"github.com/mgomezoc/valoranl-core/internal/core/usecase"
	fluentlogger "github.com/mgomezoc/valoranl-core/pkg/fluent_logger"
	"github.com/mgomezoc/valoranl-core/pkg/postgres"
	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_common"
	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_consumer"
	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_producer"
)

// App wires every adapter and use case together. This is the composition
// root; nothing below it knows about concrete infrastructure.
type App struct {
	config        *configs.AppConfig
	dbPool        *pgxpool.Pool
	connManager   *rabbitmq_common.ConnectionManager
	eventProducer *rabbitmq_producer.Publisher
	fluentClient  *fluent.Fluent
	logger        port.LoggerPort

	resultQueue port.ValuationResultQueuePort

	rawListingsListener       port.EventListenerPort
	valuationRequestsListener port.EventListenerPort

	staleSweep *usecase.DeactivateStaleUseCase
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false,
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger)
	connManager, err := rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	dbPool, err := postgres.NewClient(context.Background(), postgres.Config{DatabaseURL: appConfig.Database.URL})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

	producerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})
	producerCfg := rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		ExchangeName:             constants.ValuationExchange,
		ExchangeType:             "direct",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(producerLogger),
	}
	eventProducer, err := rabbitmq_producer.NewPublisher(producerCfg, connManager)
	if err != nil {
		appLogger.Error("Failed to create event producer", err, nil)
		dbPool.Close()
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	appLogger.Info("RabbitMQ Event Producer initialized.", nil)

	listingStorage, err := postgres_adapter.NewListingStorageAdapter(dbPool)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		return nil, fmt.Errorf("failed to create listing storage adapter: %w", err)
	}
	valuationStorage, err := postgres_adapter.NewValuationStorageAdapter(dbPool)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		return nil, fmt.Errorf("failed to create valuation storage adapter: %w", err)
	}
	resultQueueAdapter, err := rabbitmq_adapter.NewRabbitMQValuationResultQueueAdapter(eventProducer, constants.RoutingKeyValuationResults)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		return nil, fmt.Errorf("failed to create valuation result queue adapter: %w", err)
	}
	appLogger.Info("All outgoing adapters initialized.", nil)

	historyUseCase := usecase.NewTrackHistoryUseCase(listingStorage, baseLogger)
	resolveUseCase := usecase.NewResolveListingUseCase(listingStorage, historyUseCase, domain.DefaultIdentityConfig(), baseLogger)
	ingestUseCase := usecase.NewIngestListingUseCase(sources.All(), resolveUseCase, listingStorage, baseLogger)
	selectorUseCase := usecase.NewSelectComparablesUseCase(usecase.DefaultSelectorConfig())
	estimatorUseCase := usecase.NewEstimateValueUseCase(usecase.DefaultSelectorConfig(), usecase.DefaultEstimatorConfig())
	valueUseCase := usecase.NewValuePropertyUseCase(listingStorage, valuationStorage, selectorUseCase, estimatorUseCase, baseLogger)
	staleSweep := usecase.NewDeactivateStaleUseCase(listingStorage, baseLogger, time.Duration(appConfig.Ingest.StaleAfterDays)*24*time.Hour)
	appLogger.Info("All use cases initialized.", nil)

	rawListingsConsumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:              rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		QueueName:           constants.QueueRawListings,
		RoutingKeyForBind:   constants.RoutingKeyRawListings,
		ExchangeNameForBind: constants.ScraperExchange,
		PrefetchCount:       100,
		DurableQueue:        true,
		ConsumerTag:         "raw-listing-ingest-adapter",
		DeclareQueue:        true,

		EnableRetryMechanism: true,

		RetryExchange: constants.QueueRawListings + "_retry_ex",
		RetryQueue:    constants.QueueRawListings + "_retry_wait_10s",
		RetryTTL:      10000,

		FinalDLXExchange:   constants.RawListingsFinalDLXExchange,
		FinalDLQ:           constants.RawListingsFinalDLQ,
		FinalDLQRoutingKey: constants.RawListingsFinalDLQRoutingKey,

		MaxRetries: 3,
	}
	rawListingsListener, err := rabbitmq_adapter.NewRawListingConsumerAdapter(rawListingsConsumerCfg, ingestUseCase, baseLogger, connManager)
	if err != nil {
		appLogger.Error("Failed to initialize Raw Listings Listener", err, nil)
		eventProducer.Close()
		dbPool.Close()
		return nil, err
	}
	appLogger.Info("Raw Listings Listener initialized.", nil)

	valuationConsumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:              rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		QueueName:           constants.QueueValuationRequests,
		RoutingKeyForBind:   constants.RoutingKeyValuationRequests,
		ExchangeNameForBind: constants.ValuationExchange,
		PrefetchCount:       10,
		DurableQueue:        true,
		ConsumerTag:         "valuation-request-adapter",
		DeclareQueue:        true,

		EnableRetryMechanism: true,

		RetryExchange: constants.QueueValuationRequests + "_retry_ex",
		RetryQueue:    constants.QueueValuationRequests + "_retry_wait_10s",
		RetryTTL:      10000,

		FinalDLXExchange:   constants.ValuationFinalDLXExchange,
		FinalDLQ:           constants.ValuationFinalDLQ,
		FinalDLQRoutingKey: constants.ValuationFinalDLQRoutingKey,

		MaxRetries: 3,
	}
	valuationListener, err := rabbitmq_adapter.NewValuationRequestConsumerAdapter(valuationConsumerCfg, valueUseCase, resultQueueAdapter, baseLogger, connManager)
	if err != nil {
		appLogger.Error("Failed to initialize Valuation Requests Listener", err, nil)
		eventProducer.Close()
		dbPool.Close()
		return nil, err
	}
	appLogger.Info("Valuation Requests Listener initialized.", nil)

	application := &App{
		config:        appConfig,
		dbPool:        dbPool,
		connManager:   connManager,
		eventProducer: eventProducer,
		fluentClient:  fluentClient,
		logger:        appLogger,

		resultQueue: resultQueueAdapter,

		rawListingsListener:       rawListingsListener,
		valuationRequestsListener: valuationListener,

		staleSweep: staleSweep,
	}

	return application, nil
}

// Run starts every component and manages their lifecycle until a shutdown
// signal or a component failure.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		if a.rawListingsListener != nil {
			if err := a.rawListingsListener.Close(); err != nil {
				a.logger.Error("Error closing raw listings listener", err, nil)
			}
		}
		if a.valuationRequestsListener != nil {
			if err := a.valuationRequestsListener.Close(); err != nil {
				a.logger.Error("Error closing valuation requests listener", err, nil)
			}
		}
		if a.eventProducer != nil {
			if err := a.eventProducer.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}

		if a.connManager != nil {
			if err := a.connManager.Close(); err != nil {
				a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
			}
		}

		if a.dbPool != nil {
			a.dbPool.Close()
			a.logger.Info("PostgreSQL pool closed.", nil)
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			a.logger.Info("Closing Fluent Bit connection...", nil)
			if err := a.fluentClient.Close(); err != nil {
				log.Printf("App: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	consumerErrors := make(chan error, 1)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(appCtx); err != nil {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			consumerErrors <- fmt.Errorf("%s error: %w", name, err)
		} else {
			listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
		}
	}

	wg.Add(2)
	go startListener("Raw Listings Listener", a.rawListingsListener)
	go startListener("Valuation Requests Listener", a.valuationRequestsListener)

	wg.Add(1)
	go a.runStaleSweep(appCtx, &wg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or consumer error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case err := <-consumerErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down", nil)
	}

	cancelApp()

	return nil
}

// runStaleSweep marks long-unseen listings inactive once a day.
func (a *App) runStaleSweep(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	sweepLogger := a.logger.WithFields(port.Fields{"component": "stale_sweep"})

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sweepLogger.Info("Stale sweep stopped.", nil)
			return
		case <-ticker.C:
			if _, err := a.staleSweep.Run(ctx); err != nil {
				sweepLogger.Error("Stale listing sweep failed", err, nil)
			}
		}
	}
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
