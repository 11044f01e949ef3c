package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travel/internal/domain"
	"travel/internal/repository"
)

const bookingColumns = `id, listing_id, guest_name, guest_email, check_in, check_out, created_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, listing_id, guest_name, guest_email, check_in, check_out, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.ListingID,
		booking.GuestName,
		booking.GuestEmail,
		booking.CheckIn,
		booking.CheckOut,
		booking.CreatedAt,
	)

	return mapWriteError(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return booking, nil
}

// GetAll retrieves all bookings, newest first.
func (r *BookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`
	return r.query(ctx, query)
}

// GetByListingID retrieves the bookings of one listing ordered by check-in.
func (r *BookingRepository) GetByListingID(ctx context.Context, listingID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE listing_id = $1 ORDER BY check_in`
	return r.query(ctx, query, listingID)
}

// Update replaces the writable fields of an existing booking.
func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	query := `
		UPDATE bookings
		SET listing_id = $1, guest_name = $2, guest_email = $3, check_in = $4, check_out = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		booking.ListingID,
		booking.GuestName,
		booking.GuestEmail,
		booking.CheckIn,
		booking.CheckOut,
		booking.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}

	return expectOneRow(result)
}

// Delete removes a booking. payments.booking_id is nulled by ON DELETE SET NULL.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

func (r *BookingRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var booking domain.Booking
	err := s.Scan(
		&booking.ID,
		&booking.ListingID,
		&booking.GuestName,
		&booking.GuestEmail,
		&booking.CheckIn,
		&booking.CheckOut,
		&booking.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)
