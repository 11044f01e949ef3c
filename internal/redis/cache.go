package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"travel/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// ListingCacheTTL bounds how stale a cached listing can be if an
// invalidation is lost.
const ListingCacheTTL = 5 * time.Minute

// ListingTombstoneTTL is how long a write blocks read-through caching of a
// listing. It must outlast a database read racing the write.
const ListingTombstoneTTL = 10 * time.Second

// listingKey and tombstoneKey share a hash tag so the script below touches a
// single cluster slot.
func listingKey(id string) string   { return "cache:listing:{" + id + "}" }
func tombstoneKey(id string) string { return "cache:listing:{" + id + "}:tombstone" }

// setUnlessTombstoned stores a listing unless a recent write left a tombstone.
var setUnlessTombstoned = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// CachedListing represents a cached listing entity.
type CachedListing struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewCachedListing copies a listing into its cached form.
func NewCachedListing(l *domain.Listing) *CachedListing {
	return &CachedListing{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Location:      l.Location,
		PricePerNight: l.PricePerNight,
		CreatedAt:     l.CreatedAt,
	}
}

// Listing converts the cached form back to a domain listing.
func (c *CachedListing) Listing() *domain.Listing {
	return &domain.Listing{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Location:      c.Location,
		PricePerNight: c.PricePerNight,
		CreatedAt:     c.CreatedAt,
	}
}

// GetListing retrieves a listing from cache. A miss returns nil, nil.
func (s *CacheStore) GetListing(ctx context.Context, listingID string) (*CachedListing, error) {
	data, err := s.client.Get(ctx, listingKey(listingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var listing CachedListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// SetListing stores a listing in cache. It is a no-op while the listing has
// a tombstone, so a read that started before a write cannot re-cache stale data.
func (s *CacheStore) SetListing(ctx context.Context, listing *CachedListing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return setUnlessTombstoned.Run(ctx, s.client,
		[]string{listingKey(listing.ID), tombstoneKey(listing.ID)},
		data, ListingCacheTTL.Milliseconds(),
	).Err()
}

// SetListingsBatch stores several listings in one pipeline round trip.
func (s *CacheStore) SetListingsBatch(ctx context.Context, listings []*CachedListing) error {
	if len(listings) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, listing := range listings {
		data, err := json.Marshal(listing)
		if err != nil {
			continue
		}
		setUnlessTombstoned.Eval(ctx, pipe,
			[]string{listingKey(listing.ID), tombstoneKey(listing.ID)},
			data, ListingCacheTTL.Milliseconds(),
		)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateListing removes a listing from cache and leaves a short tombstone.
func (s *CacheStore) InvalidateListing(ctx context.Context, listingID string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tombstoneKey(listingID), "1", ListingTombstoneTTL)
	pipe.Del(ctx, listingKey(listingID))
	_, err := pipe.Exec(ctx)
	return err
}
