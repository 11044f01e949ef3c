package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"travel/internal/domain"
	"travel/internal/repository"
)

const paymentColumns = `id, booking_ref, booking_id, tx_ref, provider_txn_id, amount, currency,
	customer_email, status, raw_init_response, raw_verify_response, created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	db *sql.DB
	q  Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db, q: db}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, booking_ref, booking_id, tx_ref, provider_txn_id, amount, currency,
			customer_email, status, raw_init_response, raw_verify_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.BookingRef,
		nullableString(payment.BookingID),
		payment.TxRef,
		payment.ProviderTxnID,
		payment.Amount,
		payment.Currency,
		payment.CustomerEmail,
		payment.Status,
		nullableJSON(payment.RawInitResponse),
		nullableJSON(payment.RawVerifyResponse),
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return mapWriteError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.getOne(ctx, r.q, query, id)
}

// GetByTxRef retrieves a payment by its merchant transaction reference.
func (r *PaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tx_ref = $1`
	return r.getOne(ctx, r.q, query, txRef)
}

// GetAll retrieves the 100 most recent payments.
func (r *PaymentRepository) GetAll(ctx context.Context) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// Update saves the mutable fields of a payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	return r.update(ctx, r.q, payment)
}

// LockByTxRef loads the payment FOR UPDATE, calls fn and saves the result in one transaction.
func (r *PaymentRepository) LockByTxRef(ctx context.Context, txRef string, fn func(ctx context.Context, payment *domain.Payment) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := r.lockByTxRef(ctx, tx, txRef, fn); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *PaymentRepository) lockByTxRef(ctx context.Context, q Querier, txRef string, fn func(ctx context.Context, payment *domain.Payment) error) error {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tx_ref = $1 FOR UPDATE`

	payment, err := r.getOne(ctx, q, query, txRef)
	if err != nil {
		return err
	}

	if err := fn(ctx, payment); err != nil {
		return err
	}

	return r.update(ctx, q, payment)
}

func (r *PaymentRepository) update(ctx context.Context, q Querier, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET booking_id = $1, provider_txn_id = $2, status = $3,
			raw_init_response = $4, raw_verify_response = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`

	err := q.QueryRowContext(ctx, query,
		nullableString(payment.BookingID),
		payment.ProviderTxnID,
		payment.Status,
		nullableJSON(payment.RawInitResponse),
		nullableJSON(payment.RawVerifyResponse),
		payment.ID,
	).Scan(&payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return mapWriteError(err)
	}

	return nil
}

func (r *PaymentRepository) getOne(ctx context.Context, q Querier, query string, arg string) (*domain.Payment, error) {
	payment, err := scanPayment(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return payment, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var payment domain.Payment
	var bookingID sql.NullString
	var rawInit, rawVerify []byte

	err := s.Scan(
		&payment.ID,
		&payment.BookingRef,
		&bookingID,
		&payment.TxRef,
		&payment.ProviderTxnID,
		&payment.Amount,
		&payment.Currency,
		&payment.CustomerEmail,
		&payment.Status,
		&rawInit,
		&rawVerify,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bookingID.Valid {
		payment.BookingID = &bookingID.String
	}
	if len(rawInit) > 0 {
		payment.RawInitResponse = json.RawMessage(rawInit)
	}
	if len(rawVerify) > 0 {
		payment.RawVerifyResponse = json.RawMessage(rawVerify)
	}

	return &payment, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableJSON passes JSON as text so lib/pq does not encode it as bytea.
func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// Ensure PaymentRepository implements repository.PaymentRepository.
var _ repository.PaymentRepository = (*PaymentRepository)(nil)
