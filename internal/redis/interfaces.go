package redis

import "context"

// ListingCacheInterface defines the interface for listing cache operations.
type ListingCacheInterface interface {
	GetListing(ctx context.Context, listingID string) (*CachedListing, error)
	SetListing(ctx context.Context, listing *CachedListing) error
	SetListingsBatch(ctx context.Context, listings []*CachedListing) error
	InvalidateListing(ctx context.Context, listingID string) error
}

// Ensure concrete types implement interfaces.
var _ ListingCacheInterface = (*CacheStore)(nil)
