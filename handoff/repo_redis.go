package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const consumedKeyPrefix = "handoff:consumed:"

// RedisConsumedRepo implements ConsumedRepo on redis. SET NX is the
// atomic claim-once primitive, so the single-use guarantee holds across
// any number of stateless gateway replicas.
type RedisConsumedRepo struct {
	client *redis.Client
}

// NewRedisConsumedRepo creates a new redis-backed consumed-token repository
func NewRedisConsumedRepo(client *redis.Client) *RedisConsumedRepo {
	return &RedisConsumedRepo{client: client}
}

// Claim marks a token ID consumed. Returns true only for the caller that
// created the key.
func (r *RedisConsumedRepo) Claim(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if tokenID == "" {
		return false, fmt.Errorf("tokenID is required")
	}

	claimed, err := r.client.SetNX(ctx, consumedKeyPrefix+tokenID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim handoff token: %w", err)
	}
	return claimed, nil
}
