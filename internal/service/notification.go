package service

import (
	"context"

	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/notify"
)

// Enqueuer accepts notification tasks without blocking.
type Enqueuer interface {
	Enqueue(task notify.Task) bool
}

// Ensure Dispatcher implements Enqueuer.
var _ Enqueuer = (*notify.Dispatcher)(nil)

// NotificationService turns domain events into email tasks.
// Delivery is best-effort: a task that cannot be queued is logged and dropped.
type NotificationService struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(queue Enqueuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// NotifyPaymentCompleted queues the payment confirmation email.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, payment *domain.Payment) bool {
	return s.send(ctx, notify.NewPaymentConfirmation(
		payment.CustomerEmail,
		payment.BookingRef,
		payment.Amount.StringFixed(2),
		payment.Currency,
	))
}

// NotifyBookingCreated queues the booking confirmation email.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, booking *domain.Booking) bool {
	return s.send(ctx, notify.NewBookingConfirmation(booking.GuestEmail, booking.ID))
}

func (s *NotificationService) send(ctx context.Context, task notify.Task) bool {
	if s == nil || s.queue == nil {
		return false
	}

	if !s.queue.Enqueue(task) {
		s.logger.Warn("notification not queued",
			zap.String("kind", string(task.Kind)),
			zap.String("task_id", task.ID),
		)
		return false
	}

	s.logger.Info("notification queued",
		zap.String("kind", string(task.Kind)),
		zap.String("task_id", task.ID),
		zap.String("to", task.Email),
	)
	return true
}
