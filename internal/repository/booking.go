package repository

import (
	"context"

	"travel/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	// Returns ErrInvalidReference if the listing does not exist.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetAll retrieves all bookings, newest first.
	GetAll(ctx context.Context) ([]*domain.Booking, error)

	// GetByListingID retrieves the bookings of one listing.
	GetByListingID(ctx context.Context, listingID string) ([]*domain.Booking, error)

	// Update replaces the writable fields of an existing booking.
	Update(ctx context.Context, booking *domain.Booking) error

	// Delete removes a booking. Payments referencing it keep their row.
	Delete(ctx context.Context, id string) error
}
