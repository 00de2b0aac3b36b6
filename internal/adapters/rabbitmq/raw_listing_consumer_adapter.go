package rabbitmq

import (
	"context"
	"encoding/json"
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

// RawListingConsumerAdapter is the inbound adapter listening on the queue of
// scraped portal records. It groups each batch by source and hands the
// groups to the ingestion use case.
type RawListingConsumerAdapter struct {
	consumer rabbitmq_consumer.Consumer
	useCase  *usecase.IngestListingUseCase
	logger   port.LoggerPort
}

func NewRawListingConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase *usecase.IngestListingUseCase,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*RawListingConsumerAdapter, error) {

	adapter := &RawListingConsumerAdapter{
		useCase: useCase,
		logger:  logger,
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_batch_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewBatchConsumer(consumerCfg, adapter.batchMessageHandler, 100, 10*time.Second, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for raw listings: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

func (a *RawListingConsumerAdapter) batchMessageHandler(deliveries []amqp.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	traceID, _ := deliveries[0].Headers["x-trace-id"].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	batchID := uuid.New().String()

	batchLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"batch_id":     batchID,
		"batch_size":   len(deliveries),
		"adapter_name": "RawListingConsumerAdapter",
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithLogger(ctx, batchLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	batchLogger.Info("Received batch of raw listings.", nil)

	recordsBySource := make(map[string][]domain.RawRecord)

	for _, d := range deliveries {
		sourceCode, record, err := a.unmarshalRecord(d, batchLogger)
		if err != nil {
			// One malformed message poisons the batch so the retry topology
			// can take over.
			return err
		}
		recordsBySource[sourceCode] = append(recordsBySource[sourceCode], record)
	}

	for sourceCode, records := range recordsBySource {
		sourceLogger := batchLogger.WithFields(port.Fields{"source_code": sourceCode})
		sourceLogger.Info("Ingesting records from source...", port.Fields{"record_count": len(records)})

		if _, err := a.useCase.IngestBatch(ctx, sourceCode, records); err != nil {
			sourceLogger.Error("IngestBatch failed, the entire batch will be requeued.", err, nil)
			return err
		}
	}

	batchLogger.Info("Batch processed successfully.", nil)
	return nil
}

func (a *RawListingConsumerAdapter) unmarshalRecord(d amqp.Delivery, parentLogger port.LoggerPort) (string, domain.RawRecord, error) {
	msgLogger := parentLogger.WithFields(port.Fields{
		"message_id":        d.MessageId,
		"original_trace_id": d.Headers["x-trace-id"],
	})

	eventType, _ := d.Headers["event-type"].(string)
	eventVersion, _ := d.Headers["event-version"].(string)
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		msgLogger.Error("Message failed schema validation. Rejecting.", err, nil)
		return "", nil, err
	}

	var dto RawListingEventDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal raw listing event DTO: %w", err)
	}

	var record domain.RawRecord
	if err := json.Unmarshal(dto.Record, &record); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal raw record payload: %w", err)
	}

	return dto.SourceCode, record, nil
}

// Start implements EventListenerPort.
func (a *RawListingConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close implements EventListenerPort.
func (a *RawListingConsumerAdapter) Close() error {
	return a.consumer.Close()
}
