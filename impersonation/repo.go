package impersonation

import (
	"context"
	"time"
)

// Repo defines the interface for impersonation record storage. The
// gateway reads and writes session metadata; it does not own the store.
type Repo interface {
	// Create stores a new record
	Create(ctx context.Context, rec Record) error

	// Get retrieves a record by ID
	Get(ctx context.Context, id string) (Record, error)

	// End closes an Active record. Records in any other status are left
	// untouched, which keeps ended records immutable and makes End safe
	// to call twice.
	End(ctx context.Context, id string, endedAt time.Time) error
}
