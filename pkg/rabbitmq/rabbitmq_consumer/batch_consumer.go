package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mgomezoc/valoranl-core/pkg/rabbitmq/rabbitmq_common"
)

// BatchMessageHandler processes one accumulated batch. A returned error
// sends the whole batch through the retry flow.
type BatchMessageHandler func(deliveries []amqp.Delivery) error

// BatchConsumer accumulates deliveries and hands them to the handler when
// the batch fills up or the timeout fires.
type BatchConsumer struct {
	baseConsumer *baseConsumer
	handler      BatchMessageHandler
	batchSize    int
	batchTimeout time.Duration
}

func NewBatchConsumer(cfg ConsumerConfig, handler BatchMessageHandler, batchSize int, batchTimeout time.Duration, connManager *rabbitmq_common.ConnectionManager) (*BatchConsumer, error) {
	if cfg.PrefetchCount < batchSize {
		cfg.PrefetchCount = batchSize
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("batch Consumer: %w", err)
	}

	if handler == nil {
		return nil, fmt.Errorf("batch Consumer: message handler is required")
	}

	c := &BatchConsumer{
		baseConsumer: bc,
		handler:      handler,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
	}

	return c, nil
}

// StartConsuming blocks until the context is cancelled or the connection
// drops.
func (c *BatchConsumer) StartConsuming(ctx context.Context) error {
	if c.baseConsumer.channel == nil || c.baseConsumer.connection.IsClosed() {
		return fmt.Errorf("batch Consumer: not connected")
	}

	msgs, err := c.baseConsumer.channel.Consume(
		c.baseConsumer.actualQueueName,
		c.baseConsumer.config.ConsumerTag,
		false, // auto-ack
		c.baseConsumer.config.ExclusiveConsumer,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("batch Consumer: failed to register a consumer: %w", err)
	}

	c.baseConsumer.Logger.Info("[*] Waiting for messages on queue",
		"queue_name", c.baseConsumer.actualQueueName,
		"batch_size", c.batchSize,
		"batch_timeout", c.batchTimeout)

	c.baseConsumer.wg.Add(1)
	go func() {
		defer c.baseConsumer.wg.Done()
		batch := make([]amqp.Delivery, 0, c.batchSize)
		// The timer only runs while a batch is being accumulated. Stop and
		// drain it so it cannot fire before the first message arrives.
		timer := time.NewTimer(c.batchTimeout)
		if !timer.Stop() {
			<-timer.C
		}

		for {
			select {
			case <-ctx.Done():
				c.baseConsumer.Logger.Info("Context cancelled. Processing final batch...")
				c.processBatch(batch)
				return

			case msg, ok := <-msgs:
				if !ok {
					c.baseConsumer.Logger.Info("Deliveries channel closed. Processing final batch...")
					c.processBatch(batch)
					return
				}

				if len(batch) == 0 {
					timer.Reset(c.batchTimeout)
				}

				batch = append(batch, msg)

				if len(batch) >= c.batchSize {
					c.baseConsumer.Logger.Info("Batch size reached. Processing...",
						"batch_size", len(batch))

					if !timer.Stop() {
						<-timer.C
					}
					c.processBatch(batch)
					batch = make([]amqp.Delivery, 0, c.batchSize)
				}

			case <-timer.C:
				if len(batch) > 0 {
					c.baseConsumer.Logger.Info("Timeout reached. Processing batch of messages",
						"batch_size", len(batch))
					c.processBatch(batch)
					batch = make([]amqp.Delivery, 0, c.batchSize)
				}
			}
		}
	}()

	notifyClose := make(chan *amqp.Error)
	c.baseConsumer.connection.NotifyClose(notifyClose)

	select {
	case <-ctx.Done():
		c.baseConsumer.Logger.Info("Context cancelled for consumer. Shutting down.",
			"consumer_tag", c.baseConsumer.config.ConsumerTag)
		return nil

	case err := <-notifyClose:
		c.baseConsumer.Logger.Error(err, "Connection closed for consumer",
			"consumer_tag", c.baseConsumer.config.ConsumerTag)
		return err
	}
}

// processBatch invokes the handler and acks or routes each delivery through
// the retry flow.
func (c *BatchConsumer) processBatch(batch []amqp.Delivery) {
	if len(batch) == 0 {
		return
	}

	if err := c.handler(batch); err == nil {
		lastTag := batch[len(batch)-1].DeliveryTag
		_ = c.baseConsumer.channel.Ack(lastTag, true)

		c.baseConsumer.Logger.Info("Successfully Ack'd batch of messages",
			"batch_size", len(batch))

		return
	} else {
		c.baseConsumer.Logger.Error(err, "Handler returned error for batch")
	}

	if !c.baseConsumer.config.EnableRetryMechanism {
		lastTag := batch[len(batch)-1].DeliveryTag
		_ = c.baseConsumer.channel.Nack(lastTag, true, false)
		c.baseConsumer.Logger.Info("Retry disabled. Nacking entire batch without requeue.")
		return
	}

	// Per-message retry accounting: each delivery either loops through the
	// retry topology again or lands in the final DLQ.
	for _, d := range batch {
		deathCount := c.baseConsumer.getDeathCount(d, c.baseConsumer.actualQueueName)
		if deathCount < int64(c.baseConsumer.config.MaxRetries) {
			c.baseConsumer.Logger.Info("Nacking message for retry",
				"delivery_tag", d.DeliveryTag,
				"death_count", deathCount)

			_ = c.baseConsumer.channel.Nack(d.DeliveryTag, false, false)
		} else {
			c.baseConsumer.Logger.Info("Max retries reached for message. Publishing to final DLX.",
				"delivery_tag", d.DeliveryTag)

			err := c.baseConsumer.finalDlxPublisher.Publish(
				context.Background(),
				c.baseConsumer.config.FinalDLQRoutingKey,
				amqp.Publishing{
					ContentType:  d.ContentType,
					Body:         d.Body,
					Headers:      d.Headers,
					Timestamp:    time.Now(),
					DeliveryMode: amqp.Persistent,
				},
			)

			if err != nil {
				c.baseConsumer.Logger.Error(err, "Failed to publish to final DLX. Nacking to trigger retry loop again.",
					"consumer_tag", c.baseConsumer.config.ConsumerTag,
					"delivery_tag", d.DeliveryTag)
				_ = d.Nack(false, false)
			} else {
				c.baseConsumer.Logger.Info("Successfully published to final DLX. Acking original message",
					"consumer_tag", c.baseConsumer.config.ConsumerTag,
					"delivery_tag", d.DeliveryTag)
				_ = d.Ack(false)
			}
		}
	}
}

// Close waits for the last batch to finish and releases the channel.
func (c *BatchConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer")

	return c.baseConsumer.Close()
}
