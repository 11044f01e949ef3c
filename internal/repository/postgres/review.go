package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travel/internal/domain"
	"travel/internal/repository"
)

const reviewColumns = `id, listing_id, reviewer_name, rating, comment, created_at`

// ReviewRepository is a PostgreSQL implementation of repository.ReviewRepository.
type ReviewRepository struct {
	q Querier
}

// NewReviewRepository creates a new PostgreSQL review repository.
func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{q: db}
}

// Create persists a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, listing_id, reviewer_name, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query,
		review.ID,
		review.ListingID,
		review.ReviewerName,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)

	return mapWriteError(err)
}

// GetByID retrieves a review by ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	review, err := scanReview(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return review, nil
}

// GetAll retrieves all reviews, newest first.
func (r *ReviewRepository) GetAll(ctx context.Context) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews ORDER BY created_at DESC`
	return r.query(ctx, query)
}

// GetByListingID retrieves the reviews of one listing, newest first.
func (r *ReviewRepository) GetByListingID(ctx context.Context, listingID string) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE listing_id = $1 ORDER BY created_at DESC`
	return r.query(ctx, query, listingID)
}

// Update replaces the writable fields of an existing review.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	query := `
		UPDATE reviews
		SET listing_id = $1, reviewer_name = $2, rating = $3, comment = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		review.ListingID,
		review.ReviewerName,
		review.Rating,
		review.Comment,
		review.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}

	return expectOneRow(result)
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

func (r *ReviewRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Review, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}

	return reviews, rows.Err()
}

func scanReview(s scanner) (*domain.Review, error) {
	var review domain.Review
	err := s.Scan(
		&review.ID,
		&review.ListingID,
		&review.ReviewerName,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// Ensure ReviewRepository implements repository.ReviewRepository.
var _ repository.ReviewRepository = (*ReviewRepository)(nil)
