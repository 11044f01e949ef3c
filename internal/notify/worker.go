package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"travel/internal/telemetry"
)

// Handler processes one task taken off the broker.
type Handler func(ctx context.Context, task Task) error

// Delivery retry defaults used by the broker consumers.
const (
	DeliveryAttempts = 3
	DeliveryBackoff  = 2 * time.Second
)

// Retry wraps handle so a failed delivery is tried up to attempts times,
// waiting backoff times the attempt number in between. It stops early with
// ctx.Err() when ctx ends.
func Retry(handle Handler, attempts int, backoff time.Duration) Handler {
	if attempts < 1 {
		attempts = 1
	}
	return func(ctx context.Context, task Task) error {
		var err error
		for attempt := 1; attempt <= attempts; attempt++ {
			if err = handle(ctx, task); err == nil || attempt == attempts {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff * time.Duration(attempt)):
			}
		}
		return err
	}
}

// Consumer feeds tasks from the broker to a Handler until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handle Handler) error
	Close() error
}

// Claimer records which tasks have been taken. Brokers deliver at least
// once, so the same task can arrive more than once.
type Claimer interface {
	Claim(ctx context.Context, taskID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, taskID string) error
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithClaimer skips tasks that another delivery already claimed.
func WithClaimer(c Claimer, ttl time.Duration) WorkerOption {
	return func(w *Worker) {
		w.claimer = c
		w.claimTTL = ttl
	}
}

// Worker turns tasks into emails.
type Worker struct {
	mailer   Mailer
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	claimer  Claimer
	claimTTL time.Duration
}

// NewWorker creates a worker that sends through mailer.
func NewWorker(mailer Mailer, logger *zap.Logger, metrics *telemetry.Metrics, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{mailer: mailer, logger: logger, metrics: metrics}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle renders and sends the email for task.
func (w *Worker) Handle(ctx context.Context, task Task) error {
	msg, err := Render(task)
	if err != nil {
		w.metrics.NotificationDelivered(string(task.Kind), "invalid")
		return err
	}

	if !w.claim(ctx, task) {
		w.metrics.NotificationDelivered(string(task.Kind), "duplicate")
		w.logger.Info("notification already handled", zap.String("task_id", task.ID))
		return nil
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		w.metrics.NotificationDelivered(string(task.Kind), "error")
		w.release(task)
		return err
	}

	w.metrics.NotificationDelivered(string(task.Kind), "sent")
	w.logger.Info("notification sent",
		zap.String("task_id", task.ID),
		zap.String("kind", string(task.Kind)),
		zap.String("to", task.Email),
	)
	return nil
}

// claim reports whether this delivery should send the task. When the claim
// store is unavailable the task is sent; a duplicate email beats a lost one.
func (w *Worker) claim(ctx context.Context, task Task) bool {
	if w.claimer == nil || task.ID == "" {
		return true
	}

	ok, err := w.claimer.Claim(ctx, task.ID, w.claimTTL)
	if err != nil {
		w.logger.Warn("notification claim failed", zap.String("task_id", task.ID), zap.Error(err))
		return true
	}
	return ok
}

func (w *Worker) release(task Task) {
	if w.claimer == nil || task.ID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.claimer.Release(ctx, task.ID); err != nil {
		w.logger.Warn("notification claim release failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}

// Run consumes from c until ctx is canceled.
func (w *Worker) Run(ctx context.Context, c Consumer) error {
	return c.Consume(ctx, w.Handle)
}

// Render builds the email for a task.
func Render(task Task) (Message, error) {
	switch task.Kind {
	case KindPaymentConfirmation:
		return Message{
			To:      task.Email,
			Subject: fmt.Sprintf("Payment confirmed for booking %s", task.BookingRef),
			Body: fmt.Sprintf(
				"Hello,\n\nWe received your payment of %s %s for booking %s.\n\nThank you for traveling with us.\n",
				task.Amount, task.Currency, task.BookingRef,
			),
		}, nil
	case KindBookingConfirmation:
		return Message{
			To:      task.Email,
			Subject: "Booking confirmation",
			Body: fmt.Sprintf(
				"Hello,\n\nYour booking %s has been received. We look forward to hosting you.\n",
				task.BookingID,
			),
		}, nil
	default:
		return Message{}, fmt.Errorf("unknown notification kind %q", task.Kind)
	}
}
