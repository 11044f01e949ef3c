package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyResponsePrefix = "idempotency:response:"
	idempotencyLockPrefix     = "idempotency:lock:"
)

// StoredResponse is a response saved for replay under an idempotency key.
type StoredResponse struct {
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

// IdempotencyStore keeps replayable responses and in-flight markers for
// idempotency keys.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// GetResponse returns the stored response for key. A miss returns nil, nil.
func (s *IdempotencyStore) GetResponse(ctx context.Context, key string) (*StoredResponse, error) {
	data, err := s.client.Get(ctx, idempotencyResponsePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var resp StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetResponse stores resp for key.
func (s *IdempotencyStore) SetResponse(ctx context.Context, key string, resp *StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyResponsePrefix+key, data, ttl).Err()
}

// Reserve marks key as in flight. It returns false if another request holds it.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyLockPrefix+key, "1", ttl).Result()
}

// Release clears the in-flight marker for key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyLockPrefix+key).Err()
}
