package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/service"
)

// ReviewHandler handles HTTP requests for reviews.
type ReviewHandler struct {
	reviewService *service.ReviewService
	logger        *zap.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService *service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, logger: logger}
}

// ReviewResponse is the HTTP response for review operations.
type ReviewResponse struct {
	ID           string    `json:"id"`
	ListingID    string    `json:"listing_id"`
	ReviewerName string    `json:"reviewer_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

func toReviewResponse(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:           r.ID,
		ListingID:    r.ListingID,
		ReviewerName: r.ReviewerName,
		Rating:       r.Rating,
		Comment:      r.Comment,
		CreatedAt:    r.CreatedAt,
	}
}

func toReviewResponses(reviews []*domain.Review) []ReviewResponse {
	resp := make([]ReviewResponse, 0, len(reviews))
	for _, r := range reviews {
		resp = append(resp, toReviewResponse(r))
	}
	return resp
}

// CreateReview handles POST /v1/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusCreated, toReviewResponse(review))
}

// ListReviews handles GET /v1/reviews
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	reviews, err := h.reviewService.ListReviews(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toReviewResponses(reviews))
}

// GetReview handles GET /v1/reviews/:id
func (h *ReviewHandler) GetReview(c *gin.Context) {
	review, err := h.reviewService.GetReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toReviewResponse(review))
}

// ReplaceReview handles PUT /v1/reviews/:id
func (h *ReviewHandler) ReplaceReview(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.reviewService.ReplaceReview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toReviewResponse(review))
}

// PatchReview handles PATCH /v1/reviews/:id
func (h *ReviewHandler) PatchReview(c *gin.Context) {
	var req service.PatchReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.reviewService.PatchReview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toReviewResponse(review))
}

// DeleteReview handles DELETE /v1/reviews/:id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	if err := h.reviewService.DeleteReview(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
