package repository

import (
	"context"

	"travel/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	// Returns ErrDuplicate if the tx_ref is already taken.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByTxRef retrieves a payment by its merchant transaction reference.
	GetByTxRef(ctx context.Context, txRef string) (*domain.Payment, error)

	// GetAll retrieves the most recent payments.
	GetAll(ctx context.Context) ([]*domain.Payment, error)

	// Update saves the mutable fields of a payment and bumps updated_at.
	Update(ctx context.Context, payment *domain.Payment) error

	// LockByTxRef loads the payment with an exclusive row lock and calls fn.
	// If fn returns nil the payment is saved and the lock released on commit.
	// If fn returns an error nothing is written and the error is returned.
	// Returns ErrNotFound without calling fn when no row matches.
	LockByTxRef(ctx context.Context, txRef string, fn func(ctx context.Context, payment *domain.Payment) error) error
}
