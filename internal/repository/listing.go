package repository

import (
	"context"

	"travel/internal/domain"
)

// ListingRepository defines the persistence operations for listings.
type ListingRepository interface {
	// Create persists a new listing.
	Create(ctx context.Context, listing *domain.Listing) error

	// GetByID retrieves a listing by ID.
	GetByID(ctx context.Context, id string) (*domain.Listing, error)

	// GetAll retrieves all listings, newest first.
	GetAll(ctx context.Context) ([]*domain.Listing, error)

	// Update replaces the writable fields of an existing listing.
	Update(ctx context.Context, listing *domain.Listing) error

	// Delete removes a listing together with its bookings and reviews.
	Delete(ctx context.Context, id string) error
}
