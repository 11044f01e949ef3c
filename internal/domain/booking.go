package domain

import "time"

// DateLayout is the wire format for check-in and check-out dates.
const DateLayout = "2006-01-02"

// Booking represents a guest's stay at a listing.
type Booking struct {
	ID         string
	ListingID  string
	GuestName  string
	GuestEmail string
	CheckIn    time.Time
	CheckOut   time.Time
	CreatedAt  time.Time
}

// Nights returns the number of nights between check-in and check-out.
func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}
