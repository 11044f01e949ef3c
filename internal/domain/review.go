package domain

import "time"

// Review is a guest's rating and comment for a listing.
type Review struct {
	ID           string
	ListingID    string
	ReviewerName string
	Rating       int
	Comment      string
	CreatedAt    time.Time
}
