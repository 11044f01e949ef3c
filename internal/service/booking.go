package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/repository"
)

// BookingService handles booking operations.
type BookingService struct {
	bookingRepo         repository.BookingRepository
	listingRepo         repository.ListingRepository
	notificationService *NotificationService
	logger              *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	listingRepo repository.ListingRepository,
	notificationService *NotificationService,
	logger *zap.Logger,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookingRepo:         bookingRepo,
		listingRepo:         listingRepo,
		notificationService: notificationService,
		logger:              logger,
	}
}

// BookingRequest is the full set of writable booking fields. Dates use domain.DateLayout.
type BookingRequest struct {
	ListingID  string `json:"listing_id" validate:"required,uuid"`
	GuestName  string `json:"guest_name" validate:"required,max=100"`
	GuestEmail string `json:"guest_email" validate:"required,email"`
	CheckIn    string `json:"check_in" validate:"required"`
	CheckOut   string `json:"check_out" validate:"required"`
}

// PatchBookingRequest carries only the fields to change.
type PatchBookingRequest struct {
	ListingID  *string `json:"listing_id" validate:"omitempty,uuid"`
	GuestName  *string `json:"guest_name" validate:"omitempty,max=100"`
	GuestEmail *string `json:"guest_email" validate:"omitempty,email"`
	CheckIn    *string `json:"check_in"`
	CheckOut   *string `json:"check_out"`
}

// CreateBooking stores a booking and queues its confirmation email.
// The email is best-effort: the booking stands even if queueing fails.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (*domain.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	if err := requireListing(ctx, s.listingRepo, req.ListingID); err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		ID:         uuid.New().String(),
		ListingID:  req.ListingID,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, mapListingReference(err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("listing_id", booking.ListingID),
	)
	s.notificationService.NotifyBookingCreated(ctx, booking)

	return booking, nil
}

// GetBooking retrieves a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookingRepo.GetByID(ctx, bookingID)
}

// ListBookings returns all bookings.
func (s *BookingService) ListBookings(ctx context.Context) ([]*domain.Booking, error) {
	return s.bookingRepo.GetAll(ctx)
}

// ListBookingsForListing returns the bookings of one listing.
// Returns repository.ErrNotFound if the listing does not exist.
func (s *BookingService) ListBookingsForListing(ctx context.Context, listingID string) ([]*domain.Booking, error) {
	if listingID == "" {
		return nil, ErrInvalidListingID
	}
	if _, err := s.listingRepo.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.bookingRepo.GetByListingID(ctx, listingID)
}

// ReplaceBooking overwrites every writable field of a booking.
func (s *BookingService) ReplaceBooking(ctx context.Context, bookingID string, req BookingRequest) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.ListingID != req.ListingID {
		if err := requireListing(ctx, s.listingRepo, req.ListingID); err != nil {
			return nil, err
		}
	}

	booking.ListingID = req.ListingID
	booking.GuestName = req.GuestName
	booking.GuestEmail = req.GuestEmail
	booking.CheckIn = checkIn
	booking.CheckOut = checkOut

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, mapListingReference(err)
	}
	return booking, nil
}

// PatchBooking changes only the supplied fields. The resulting stay must still be valid.
func (s *BookingService) PatchBooking(ctx context.Context, bookingID string, req PatchBookingRequest) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	checkIn := booking.CheckIn.Format(domain.DateLayout)
	checkOut := booking.CheckOut.Format(domain.DateLayout)
	if req.CheckIn != nil {
		checkIn = *req.CheckIn
	}
	if req.CheckOut != nil {
		checkOut = *req.CheckOut
	}
	booking.CheckIn, booking.CheckOut, err = parseStay(checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	if req.ListingID != nil && *req.ListingID != booking.ListingID {
		if err := requireListing(ctx, s.listingRepo, *req.ListingID); err != nil {
			return nil, err
		}
		booking.ListingID = *req.ListingID
	}
	if req.GuestName != nil {
		booking.GuestName = *req.GuestName
	}
	if req.GuestEmail != nil {
		booking.GuestEmail = *req.GuestEmail
	}

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, mapListingReference(err)
	}
	return booking, nil
}

// DeleteBooking removes a booking. Payments that referenced it keep their row.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return ErrInvalidBookingID
	}
	return s.bookingRepo.Delete(ctx, bookingID)
}

// requireListing reports a missing listing as a listing_id field error.
func requireListing(ctx context.Context, listingRepo repository.ListingRepository, listingID string) error {
	if _, err := listingRepo.GetByID(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fieldError("listing_id", "Listing does not exist.")
		}
		return err
	}
	return nil
}

// parseStay parses both dates and requires check-out to fall after check-in.
func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	fields := make(map[string]string)

	in, err := time.Parse(domain.DateLayout, checkIn)
	if err != nil {
		fields["check_in"] = "Date has wrong format. Use YYYY-MM-DD."
	}
	out, err := time.Parse(domain.DateLayout, checkOut)
	if err != nil {
		fields["check_out"] = "Date has wrong format. Use YYYY-MM-DD."
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, &ValidationError{Fields: fields}
	}

	if !out.After(in) {
		return time.Time{}, time.Time{}, fieldError("check_out", "Check-out must be after check-in.")
	}
	return in, out, nil
}

// mapListingReference reports a foreign key failure on listing_id as a field error.
func mapListingReference(err error) error {
	if errors.Is(err, repository.ErrInvalidReference) {
		return fieldError("listing_id", "Listing does not exist.")
	}
	return err
}
