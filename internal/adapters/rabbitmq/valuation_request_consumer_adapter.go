package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mgomezoc/valoranl-core/internal/contextkeys"
	"github.com/mgomezoc/valoranl-core/internal/contracts"
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
	"github.com/mgomezoc/valoranl-core/internal/core/usecase"
	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_common"
	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_consumer"
)

// ValuationRequestConsumerAdapter listens for valuation requests, runs the
// pipeline and publishes the outcome. A subject that cannot be valued gets a
// failure result instead of a requeue; only infrastructure errors requeue.
type ValuationRequestConsumerAdapter struct {
	consumer rabbitmq_consumer.Consumer
	useCase  *usecase.ValuePropertyUseCase
	results  port.ValuationResultQueuePort
	logger   port.LoggerPort
}

func NewValuationRequestConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase *usecase.ValuePropertyUseCase,
	results port.ValuationResultQueuePort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*ValuationRequestConsumerAdapter, error) {

	adapter := &ValuationRequestConsumerAdapter{
		useCase: useCase,
		results: results,
		logger:  logger,
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_batch_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	// Valuations are CPU-bound, small batches keep latency down.
	consumer, err := rabbitmq_consumer.NewBatchConsumer(consumerCfg, adapter.batchMessageHandler, 10, 2*time.Second, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for valuation requests: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

func (a *ValuationRequestConsumerAdapter) batchMessageHandler(deliveries []amqp.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	traceID, _ := deliveries[0].Headers["x-trace-id"].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	batchLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"batch_size":   len(deliveries),
		"adapter_name": "ValuationRequestConsumerAdapter",
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithLogger(ctx, batchLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	for _, d := range deliveries {
		if err := a.handleRequest(ctx, d, batchLogger); err != nil {
			return err
		}
	}

	return nil
}

func (a *ValuationRequestConsumerAdapter) handleRequest(ctx context.Context, d amqp.Delivery, parentLogger port.LoggerPort) error {
	msgLogger := parentLogger.WithFields(port.Fields{
		"message_id": d.MessageId,
	})

	eventType, _ := d.Headers["event-type"].(string)
	eventVersion, _ := d.Headers["event-version"].(string)
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		msgLogger.Error("Valuation request failed schema validation. Rejecting.", err, nil)
		return err
	}

	var dto ValuationRequestEventDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		return fmt.Errorf("failed to unmarshal valuation request DTO: %w", err)
	}

	reqLogger := msgLogger.WithFields(port.Fields{"request_id": dto.RequestID})
	reqCtx := contextkeys.ContextWithLogger(ctx, reqLogger)

	valuation, err := a.useCase.Value(reqCtx, toSubjectDomain(dto.Subject))
	if err != nil {
		var insufficientErr *domain.InsufficientComparablesError
		if errors.As(err, &insufficientErr) {
			reqLogger.Warn("Not enough comparables to value this subject.", port.Fields{
				"found":   insufficientErr.Found,
				"minimum": insufficientErr.Minimum,
			})
			return a.results.PublishFailure(reqCtx, dto.RequestID, insufficientErr.Error())
		}
		reqLogger.Error("Valuation failed, the batch will be requeued.", err, nil)
		return err
	}

	if err := a.results.PublishResult(reqCtx, dto.RequestID, valuation); err != nil {
		reqLogger.Error("Failed to publish valuation result.", err, nil)
		return err
	}

	return nil
}

// Start implements EventListenerPort.
func (a *ValuationRequestConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close implements EventListenerPort.
func (a *ValuationRequestConsumerAdapter) Close() error {
	return a.consumer.Close()
}
