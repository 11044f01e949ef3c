package notify

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes tasks on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher creates a publisher on an open connection.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish sends one task. NATS core publishing is fire-and-forget once buffered.
func (p *NATSPublisher) Publish(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeTask(task)
	if err != nil {
		return err
	}

	return p.conn.Publish(p.subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NATSConsumer receives tasks through a queue group so each task reaches one worker.
type NATSConsumer struct {
	conn    *nats.Conn
	subject string
	queue   string
	logger  *zap.Logger
}

// NewNATSConsumer creates a queue-group consumer.
func NewNATSConsumer(conn *nats.Conn, subject, queue string, logger *zap.Logger) *NATSConsumer {
	return &NATSConsumer{conn: conn, subject: subject, queue: queue, logger: logger}
}

// Consume subscribes and handles tasks until ctx is canceled. Core NATS does
// not redeliver, so a failed delivery is retried in place and then dropped.
func (c *NATSConsumer) Consume(ctx context.Context, handle Handler) error {
	deliver := Retry(handle, DeliveryAttempts, DeliveryBackoff)

	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		task, err := decodeTask(msg.Data)
		if err != nil {
			c.logger.Error("discarding undecodable task", zap.Error(err))
			return
		}
		if err := deliver(ctx, task); err != nil {
			c.logger.Error("dropping task after failed deliveries",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return err
	}

	c.logger.Info("subscribed to notifications",
		zap.String("subject", c.subject),
		zap.String("queue", c.queue),
	)

	<-ctx.Done()
	return sub.Drain()
}

// Close drains and closes the connection.
func (c *NATSConsumer) Close() error {
	return c.conn.Drain()
}
