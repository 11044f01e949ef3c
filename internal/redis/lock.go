package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TaskClaimTTL covers the broker's redelivery window for notification tasks.
const TaskClaimTTL = 24 * time.Hour

const taskClaimPrefix = "claim:notification:"

// TaskClaimStore marks notification tasks as taken so a redelivered task is
// not emailed twice.
type TaskClaimStore struct {
	client *redis.Client
}

// NewTaskClaimStore creates a new TaskClaimStore.
func NewTaskClaimStore(client *redis.Client) *TaskClaimStore {
	return &TaskClaimStore{client: client}
}

// Claim takes the task. It returns false if another delivery already holds it.
func (s *TaskClaimStore) Claim(ctx context.Context, taskID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, taskClaimPrefix+taskID, "1", ttl).Result()
}

// Release gives the task back so a later delivery can retry it.
func (s *TaskClaimStore) Release(ctx context.Context, taskID string) error {
	return s.client.Del(ctx, taskClaimPrefix+taskID).Err()
}
