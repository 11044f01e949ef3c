package seed_test

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"travel/internal/seed"
	"travel/internal/tests"
)

func TestListings_CreatesRequestedCount(t *testing.T) {
	t.Parallel()

	store := tests.NewMockStore()

	created, err := seed.Listings(context.Background(), store.Listings(), 25, gofakeit.New(42))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(created) != 25 {
		t.Errorf("expected 25 listings, got %d", len(created))
	}

	stored, err := store.Listings().GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(stored) != 25 {
		t.Errorf("expected 25 stored listings, got %d", len(stored))
	}

	lower := decimal.NewFromInt(30)
	upper := decimal.NewFromInt(200)
	for _, l := range created {
		if l.Title == "" || l.Description == "" || l.Location == "" {
			t.Errorf("expected populated listing, got %+v", l)
		}
		if l.PricePerNight.LessThan(lower) || !l.PricePerNight.LessThan(upper) {
			t.Errorf("price %s out of range", l.PricePerNight)
		}
		if !l.PricePerNight.Equal(l.PricePerNight.Truncate(2)) {
			t.Errorf("price %s has more than 2 decimal places", l.PricePerNight)
		}
	}
}

func TestNewListing_SameSeedSameData(t *testing.T) {
	t.Parallel()

	first := seed.NewListing(gofakeit.New(7))
	second := seed.NewListing(gofakeit.New(7))

	if first.Title != second.Title || !first.PricePerNight.Equal(second.PricePerNight) {
		t.Errorf("expected identical listings, got %+v and %+v", first, second)
	}
	if first.ID == second.ID {
		t.Error("expected distinct ids")
	}
}

func TestListings_NegativeCount(t *testing.T) {
	t.Parallel()

	store := tests.NewMockStore()

	if _, err := seed.Listings(context.Background(), store.Listings(), -1, gofakeit.New(1)); err == nil {
		t.Fatal("expected error for negative count")
	}
	if n, _ := store.Listings().GetAll(context.Background()); len(n) != 0 {
		t.Errorf("expected no listings, got %d", len(n))
	}
}
