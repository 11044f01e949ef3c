// Package seed fills an empty database with sample listings.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travel/internal/domain"
	"travel/internal/repository"
)

// DefaultCount is the number of listings created when no count is given.
const DefaultCount = 10

// Price bounds for generated listings. The upper bound is exclusive.
const (
	minPrice = 30
	maxPrice = 200
)

// NewListing builds one sample listing from faker.
func NewListing(faker *gofakeit.Faker) *domain.Listing {
	price := decimal.NewFromFloat(faker.Float64Range(minPrice, maxPrice)).Truncate(2)

	return &domain.Listing{
		ID:            uuid.New().String(),
		Title:         faker.Company(),
		Description:   faker.Paragraph(1, 3, 12, " "),
		Location:      faker.City(),
		PricePerNight: price,
		CreatedAt:     time.Now().UTC(),
	}
}

// Listings creates n sample listings and returns them in creation order.
func Listings(ctx context.Context, repo repository.ListingRepository, n int, faker *gofakeit.Faker) ([]*domain.Listing, error) {
	if n < 0 {
		return nil, fmt.Errorf("listing count must not be negative, got %d", n)
	}

	created := make([]*domain.Listing, 0, n)
	for i := 0; i < n; i++ {
		listing := NewListing(faker)
		if err := repo.Create(ctx, listing); err != nil {
			return created, fmt.Errorf("failed to create listing %d of %d: %w", i+1, n, err)
		}
		created = append(created, listing)
	}

	return created, nil
}
