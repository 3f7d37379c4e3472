package handoff

import (
	"context"
	"time"
)

// ConsumedRepo records redeemed handoff token IDs. Claim is the single-use
// primitive: it must be atomic across replicas, so the first caller for a
// token ID gets true and every later caller gets false. The entry only
// needs to outlive the token itself, hence the TTL.
type ConsumedRepo interface {
	Claim(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}
