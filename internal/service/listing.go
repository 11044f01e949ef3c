package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/redis"
	"travel/internal/repository"
)

// ListingService handles listing operations with a read-through cache.
type ListingService struct {
	listingRepo repository.ListingRepository
	cache       redis.ListingCacheInterface
	logger      *zap.Logger
}

// NewListingService creates a new ListingService. cache may be nil.
func NewListingService(listingRepo repository.ListingRepository, cache redis.ListingCacheInterface, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{
		listingRepo: listingRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ListingRequest is the full set of writable listing fields, used by create and replace.
type ListingRequest struct {
	Title         string           `json:"title" validate:"required,max=100"`
	Description   string           `json:"description" validate:"required"`
	Location      string           `json:"location" validate:"required,max=100"`
	PricePerNight *decimal.Decimal `json:"price_per_night" validate:"required,gte=0,lte=99999999.99"`
}

// PatchListingRequest carries only the fields to change.
type PatchListingRequest struct {
	Title         *string          `json:"title" validate:"omitempty,max=100"`
	Description   *string          `json:"description"`
	Location      *string          `json:"location" validate:"omitempty,max=100"`
	PricePerNight *decimal.Decimal `json:"price_per_night" validate:"omitempty,gte=0,lte=99999999.99"`
}

// CreateListing validates and stores a new listing.
func (s *ListingService) CreateListing(ctx context.Context, req ListingRequest) (*domain.Listing, error) {
	if err := checkMoneyPlaces(validateStruct(req), "price_per_night", req.PricePerNight); err != nil {
		return nil, err
	}

	listing := &domain.Listing{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		PricePerNight: *req.PricePerNight,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, outOfRangeField(err, "price_per_night")
	}

	return listing, nil
}

// GetListing retrieves a listing, serving from cache when possible.
func (s *ListingService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	if listingID == "" {
		return nil, ErrInvalidListingID
	}

	if s.cache != nil {
		cached, err := s.cache.GetListing(ctx, listingID)
		if err != nil {
			s.logger.Warn("listing cache read failed", zap.String("listing_id", listingID), zap.Error(err))
		} else if cached != nil {
			return cached.Listing(), nil
		}
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetListing(ctx, redis.NewCachedListing(listing)); err != nil {
			s.logger.Warn("listing cache write failed", zap.String("listing_id", listingID), zap.Error(err))
		}
	}

	return listing, nil
}

// ListListings returns all listings and warms the cache with them.
func (s *ListingService) ListListings(ctx context.Context) ([]*domain.Listing, error) {
	listings, err := s.listingRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(listings) > 0 {
		cached := make([]*redis.CachedListing, 0, len(listings))
		for _, l := range listings {
			cached = append(cached, redis.NewCachedListing(l))
		}
		if err := s.cache.SetListingsBatch(ctx, cached); err != nil {
			s.logger.Warn("listing cache batch write failed", zap.Error(err))
		}
	}

	return listings, nil
}

// ReplaceListing overwrites every writable field of a listing.
func (s *ListingService) ReplaceListing(ctx context.Context, listingID string, req ListingRequest) (*domain.Listing, error) {
	if listingID == "" {
		return nil, ErrInvalidListingID
	}
	if err := checkMoneyPlaces(validateStruct(req), "price_per_night", req.PricePerNight); err != nil {
		return nil, err
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	listing.Title = req.Title
	listing.Description = req.Description
	listing.Location = req.Location
	listing.PricePerNight = *req.PricePerNight

	return s.save(ctx, listing)
}

// PatchListing changes only the supplied fields.
func (s *ListingService) PatchListing(ctx context.Context, listingID string, req PatchListingRequest) (*domain.Listing, error) {
	if listingID == "" {
		return nil, ErrInvalidListingID
	}
	if err := checkMoneyPlaces(validateStruct(req), "price_per_night", req.PricePerNight); err != nil {
		return nil, err
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Location != nil {
		listing.Location = *req.Location
	}
	if req.PricePerNight != nil {
		listing.PricePerNight = *req.PricePerNight
	}

	return s.save(ctx, listing)
}

// DeleteListing removes a listing. Its bookings and reviews go with it.
func (s *ListingService) DeleteListing(ctx context.Context, listingID string) error {
	if listingID == "" {
		return ErrInvalidListingID
	}

	if err := s.listingRepo.Delete(ctx, listingID); err != nil {
		return err
	}

	s.invalidate(ctx, listingID)
	return nil
}

func (s *ListingService) save(ctx context.Context, listing *domain.Listing) (*domain.Listing, error) {
	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, outOfRangeField(err, "price_per_night")
	}

	s.invalidate(ctx, listing.ID)
	return listing, nil
}

func (s *ListingService) invalidate(ctx context.Context, listingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateListing(ctx, listingID); err != nil {
		s.logger.Warn("listing cache invalidation failed", zap.String("listing_id", listingID), zap.Error(err))
	}
}
