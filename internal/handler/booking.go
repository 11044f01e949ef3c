package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
	logger         *zap.Logger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, logger: logger}
}

// BookingResponse is the HTTP response for booking operations.
type BookingResponse struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Nights     int       `json:"nights"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:         b.ID,
		ListingID:  b.ListingID,
		GuestName:  b.GuestName,
		GuestEmail: b.GuestEmail,
		CheckIn:    b.CheckIn.Format(domain.DateLayout),
		CheckOut:   b.CheckOut.Format(domain.DateLayout),
		Nights:     b.Nights(),
		CreatedAt:  b.CreatedAt,
	}
}

func toBookingResponses(bookings []*domain.Booking) []BookingResponse {
	resp := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toBookingResponse(b))
	}
	return resp
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req service.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// ListBookings handles GET /v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ReplaceBooking handles PUT /v1/bookings/:id
func (h *BookingHandler) ReplaceBooking(c *gin.Context) {
	var req service.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.ReplaceBooking(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// PatchBooking handles PATCH /v1/bookings/:id
func (h *BookingHandler) PatchBooking(c *gin.Context) {
	var req service.PatchBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.PatchBooking(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// DeleteBooking handles DELETE /v1/bookings/:id
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	if err := h.bookingService.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
