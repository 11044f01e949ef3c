package repository

import (
	"context"

	"travel/internal/domain"
)

// ReviewRepository defines the persistence operations for reviews.
type ReviewRepository interface {
	// Create persists a new review.
	// Returns ErrInvalidReference if the listing does not exist.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by ID.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetAll retrieves all reviews, newest first.
	GetAll(ctx context.Context) ([]*domain.Review, error)

	// GetByListingID retrieves the reviews of one listing.
	GetByListingID(ctx context.Context, listingID string) ([]*domain.Review, error)

	// Update replaces the writable fields of an existing review.
	Update(ctx context.Context, review *domain.Review) error

	// Delete removes a review.
	Delete(ctx context.Context, id string) error
}
