package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a property that guests can book and review.
type Listing struct {
	ID            string
	Title         string
	Description   string
	Location      string
	PricePerNight decimal.Decimal
	CreatedAt     time.Time
}
