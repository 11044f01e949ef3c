package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/service"
)

// ListingHandler handles HTTP requests for listings and their nested collections.
type ListingHandler struct {
	listingService *service.ListingService
	bookingService *service.BookingService
	reviewService  *service.ReviewService
	logger         *zap.Logger
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(
	listingService *service.ListingService,
	bookingService *service.BookingService,
	reviewService *service.ReviewService,
	logger *zap.Logger,
) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		bookingService: bookingService,
		reviewService:  reviewService,
		logger:         logger,
	}
}

// ListingResponse is the HTTP response for listing operations.
type ListingResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	PricePerNight string    `json:"price_per_night"`
	CreatedAt     time.Time `json:"created_at"`
}

func toListingResponse(l *domain.Listing) ListingResponse {
	return ListingResponse{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Location:      l.Location,
		PricePerNight: l.PricePerNight.StringFixed(2),
		CreatedAt:     l.CreatedAt,
	}
}

// CreateListing handles POST /v1/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	var req service.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusCreated, toListingResponse(listing))
}

// ListListings handles GET /v1/listings
func (h *ListingHandler) ListListings(c *gin.Context) {
	listings, err := h.listingService.ListListings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, toListingResponse(l))
	}
	respondJSON(c, http.StatusOK, resp)
}

// GetListing handles GET /v1/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listing, err := h.listingService.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toListingResponse(listing))
}

// ReplaceListing handles PUT /v1/listings/:id
func (h *ListingHandler) ReplaceListing(c *gin.Context) {
	var req service.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	listing, err := h.listingService.ReplaceListing(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toListingResponse(listing))
}

// PatchListing handles PATCH /v1/listings/:id
func (h *ListingHandler) PatchListing(c *gin.Context) {
	var req service.PatchListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	listing, err := h.listingService.PatchListing(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toListingResponse(listing))
}

// DeleteListing handles DELETE /v1/listings/:id
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	if err := h.listingService.DeleteListing(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListListingBookings handles GET /v1/listings/:id/bookings
func (h *ListingHandler) ListListingBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookingsForListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}

// ListListingReviews handles GET /v1/listings/:id/reviews
func (h *ListingHandler) ListListingReviews(c *gin.Context) {
	reviews, err := h.reviewService.ListReviewsForListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toReviewResponses(reviews))
}
