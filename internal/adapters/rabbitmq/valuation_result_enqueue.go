package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mgomezoc/valoranl-core/internal/contextkeys"
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_producer"
)

// RabbitMQValuationResultQueueAdapter publishes valuation outcomes back to
// the serving layer.
type RabbitMQValuationResultQueueAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

func NewRabbitMQValuationResultQueueAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*RabbitMQValuationResultQueueAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("routingKey cannot be empty")
	}

	return &RabbitMQValuationResultQueueAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

// PublishResult sends a successful valuation for the given request.
func (a *RabbitMQValuationResultQueueAdapter) PublishResult(ctx context.Context, requestID string, valuation *domain.Valuation) error {
	event := ValuationResultEventDTO{
		RequestID: requestID,
		Status:    "ok",
		Valuation: toValuationDTO(valuation),
	}
	return a.publish(ctx, requestID, event)
}

// PublishFailure reports that the request could not be served, with the
// reason a human can read.
func (a *RabbitMQValuationResultQueueAdapter) PublishFailure(ctx context.Context, requestID string, reason string) error {
	event := ValuationResultEventDTO{
		RequestID:     requestID,
		Status:        "failed",
		FailureReason: reason,
	}
	return a.publish(ctx, requestID, event)
}

func (a *RabbitMQValuationResultQueueAdapter) publish(ctx context.Context, requestID string, event ValuationResultEventDTO) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "RabbitMQValuationResultQueueAdapter",
		"routing_key": a.routingKey,
		"request_id":  requestID,
	})

	eventJSON, err := json.Marshal(event)
	if err != nil {
		adapterLogger.Error("Failed to marshal valuation result to JSON", err, nil)
		return fmt.Errorf("failed to marshal valuation result for request %s: %w", requestID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         eventJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"event-type":    "ValuationResultEvent",
			"event-version": "1.0.0",
		},
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish valuation result", err, nil)
		return err
	}

	adapterLogger.Info("Successfully published valuation result", port.Fields{"status": event.Status})
	return nil
}

// Close releases the publisher channel.
func (a *RabbitMQValuationResultQueueAdapter) Close() error {
	return a.producer.Close()
}
