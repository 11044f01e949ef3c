package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travel/internal/domain"
	"travel/internal/repository"
)

// ReviewService handles review operations.
type ReviewService struct {
	reviewRepo  repository.ReviewRepository
	listingRepo repository.ListingRepository
}

// NewReviewService creates a new ReviewService.
func NewReviewService(reviewRepo repository.ReviewRepository, listingRepo repository.ListingRepository) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		listingRepo: listingRepo,
	}
}

// ReviewRequest is the full set of writable review fields. Rating is not bounded.
type ReviewRequest struct {
	ListingID    string `json:"listing_id" validate:"required,uuid"`
	ReviewerName string `json:"reviewer_name" validate:"required,max=100"`
	Rating       *int   `json:"rating" validate:"required"`
	Comment      string `json:"comment" validate:"required"`
}

// PatchReviewRequest carries only the fields to change.
type PatchReviewRequest struct {
	ListingID    *string `json:"listing_id" validate:"omitempty,uuid"`
	ReviewerName *string `json:"reviewer_name" validate:"omitempty,max=100"`
	Rating       *int    `json:"rating"`
	Comment      *string `json:"comment"`
}

// CreateReview stores a review for an existing listing.
func (s *ReviewService) CreateReview(ctx context.Context, req ReviewRequest) (*domain.Review, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := requireListing(ctx, s.listingRepo, req.ListingID); err != nil {
		return nil, err
	}

	review := &domain.Review{
		ID:           uuid.New().String(),
		ListingID:    req.ListingID,
		ReviewerName: req.ReviewerName,
		Rating:       *req.Rating,
		Comment:      req.Comment,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, mapListingReference(err)
	}
	return review, nil
}

// GetReview retrieves a review by ID.
func (s *ReviewService) GetReview(ctx context.Context, reviewID string) (*domain.Review, error) {
	if reviewID == "" {
		return nil, ErrInvalidReviewID
	}
	return s.reviewRepo.GetByID(ctx, reviewID)
}

// ListReviews returns all reviews.
func (s *ReviewService) ListReviews(ctx context.Context) ([]*domain.Review, error) {
	return s.reviewRepo.GetAll(ctx)
}

// ListReviewsForListing returns the reviews of one listing.
// Returns repository.ErrNotFound if the listing does not exist.
func (s *ReviewService) ListReviewsForListing(ctx context.Context, listingID string) ([]*domain.Review, error) {
	if listingID == "" {
		return nil, ErrInvalidListingID
	}
	if _, err := s.listingRepo.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.reviewRepo.GetByListingID(ctx, listingID)
}

// ReplaceReview overwrites every writable field of a review.
func (s *ReviewService) ReplaceReview(ctx context.Context, reviewID string, req ReviewRequest) (*domain.Review, error) {
	if reviewID == "" {
		return nil, ErrInvalidReviewID
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.ListingID != req.ListingID {
		if err := requireListing(ctx, s.listingRepo, req.ListingID); err != nil {
			return nil, err
		}
	}

	review.ListingID = req.ListingID
	review.ReviewerName = req.ReviewerName
	review.Rating = *req.Rating
	review.Comment = req.Comment

	if err := s.reviewRepo.Update(ctx, review); err != nil {
		return nil, mapListingReference(err)
	}
	return review, nil
}

// PatchReview changes only the supplied fields.
func (s *ReviewService) PatchReview(ctx context.Context, reviewID string, req PatchReviewRequest) (*domain.Review, error) {
	if reviewID == "" {
		return nil, ErrInvalidReviewID
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if req.ListingID != nil && *req.ListingID != review.ListingID {
		if err := requireListing(ctx, s.listingRepo, *req.ListingID); err != nil {
			return nil, err
		}
		review.ListingID = *req.ListingID
	}
	if req.ReviewerName != nil {
		review.ReviewerName = *req.ReviewerName
	}
	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Comment != nil {
		review.Comment = *req.Comment
	}

	if err := s.reviewRepo.Update(ctx, review); err != nil {
		return nil, mapListingReference(err)
	}
	return review, nil
}

// DeleteReview removes a review.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID string) error {
	if reviewID == "" {
		return ErrInvalidReviewID
	}
	return s.reviewRepo.Delete(ctx, reviewID)
}
