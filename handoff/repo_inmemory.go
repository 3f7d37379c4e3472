package handoff

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryConsumedRepo is an in-memory implementation of ConsumedRepo.
// The compare-and-set happens under one lock, so single-use holds within
// a single replica; multi-replica deployments need the redis store.
type InMemoryConsumedRepo struct {
	mu       sync.Mutex
	consumed map[string]time.Time // tokenID -> entry expiry
}

// NewInMemoryConsumedRepo creates a new in-memory consumed-token repository
func NewInMemoryConsumedRepo() *InMemoryConsumedRepo {
	return &InMemoryConsumedRepo{
		consumed: make(map[string]time.Time),
	}
}

// Claim marks a token ID consumed. Returns true only for the first caller.
func (r *InMemoryConsumedRepo) Claim(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if tokenID == "" {
		return false, fmt.Errorf("tokenID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.sweepLocked(now)

	if _, ok := r.consumed[tokenID]; ok {
		return false, nil
	}
	r.consumed[tokenID] = now.Add(ttl)
	return true, nil
}

// sweepLocked drops entries whose TTL has passed. Caller holds the lock.
func (r *InMemoryConsumedRepo) sweepLocked(now time.Time) {
	for id, expiry := range r.consumed {
		if expiry.Before(now) {
			delete(r.consumed, id)
		}
	}
}
