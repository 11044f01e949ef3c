package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"travel/internal/domain"
)

var (
	// ErrTxRefRequired is returned when verify is called without a tx_ref.
	ErrTxRefRequired = errors.New("tx_ref is required")

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")

	// ErrInvalidListingID is returned when listing ID is empty.
	ErrInvalidListingID = errors.New("invalid listing id")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidReviewID is returned when review ID is empty.
	ErrInvalidReviewID = errors.New("invalid review id")
)

// ValidationError reports request fields that failed validation, keyed by
// their JSON names.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// GatewayErrorKind distinguishes transport failures from provider rejections.
type GatewayErrorKind string

const (
	// GatewayNetwork means no usable response arrived from the provider.
	GatewayNetwork GatewayErrorKind = "network"
	// GatewayRejected means the provider answered with an error or unusable payload.
	GatewayRejected GatewayErrorKind = "rejected"
)

// GatewayError is returned when a payment gateway call fails.
type GatewayError struct {
	Kind GatewayErrorKind
	Err  error
	// Response is the raw provider body for rejections.
	Response json.RawMessage
	// Payment is the record as saved after the failure, when one was written.
	Payment *domain.Payment
}

func (e *GatewayError) Error() string {
	if e.Kind == GatewayNetwork {
		return "Network error: " + e.Err.Error()
	}
	return "Failed to initialize payment"
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
