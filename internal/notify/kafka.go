package notify

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes tasks to a Kafka topic keyed by booking.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one task.
func (p *KafkaPublisher) Publish(ctx context.Context, task Task) error {
	value, err := encodeTask(task)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Key()),
		Value: value,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads tasks from a topic as part of a consumer group.
type KafkaConsumer struct {
	reader   *kafka.Reader
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
}

// NewKafkaConsumer creates a group consumer for topic.
func NewKafkaConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		logger:   logger,
		attempts: DeliveryAttempts,
		backoff:  DeliveryBackoff,
	}
}

// Consume calls handle for every task until ctx is canceled. A failed
// delivery is retried in place. Once the retries are used up the offset is
// committed and the task is dropped. A task interrupted by shutdown is left
// uncommitted so the group redelivers it.
func (c *KafkaConsumer) Consume(ctx context.Context, handle Handler) error {
	deliver := Retry(handle, c.attempts, c.backoff)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			c.logger.Error("error reading message from kafka", zap.Error(err))
			continue
		}

		if task, err := decodeTask(msg.Value); err != nil {
			c.logger.Error("discarding undecodable task",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		} else if err := deliver(ctx, task); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("dropping task after failed deliveries",
				zap.String("task_id", task.ID),
				zap.Int("attempts", c.attempts),
				zap.Error(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit kafka offset", zap.Error(err))
		}
	}
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
