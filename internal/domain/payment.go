package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	// PaymentStatusCanceled is never set by the initiate or verify flows.
	PaymentStatusCanceled PaymentStatus = "CANCELED"
)

// DefaultCurrency is used when neither the request nor configuration name one.
const DefaultCurrency = "ETB"

// Payment is one attempt to collect money for a booking through the gateway.
type Payment struct {
	ID string

	// BookingRef is the caller's free-text booking identifier. It is not a
	// foreign key and may not match any booking row.
	BookingRef string
	// BookingID is set to nil when the referenced booking is deleted.
	BookingID *string

	TxRef         string
	ProviderTxnID string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	Status        PaymentStatus

	RawInitResponse   json.RawMessage
	RawVerifyResponse json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}
