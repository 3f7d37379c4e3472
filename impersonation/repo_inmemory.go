package impersonation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saasgate/tenant-gateway/internal/errors"
)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryRepo creates a new in-memory impersonation record repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]Record),
	}
}

// Create stores a new record
func (r *InMemoryRepo) Create(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	r.records[rec.ID] = rec
	return nil
}

// Len reports the number of stored records
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Get retrieves a record by ID
func (r *InMemoryRepo) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, errors.ErrRecordNotFound
	}
	return rec, nil
}

// End closes an Active record; any other status is a no-op
func (r *InMemoryRepo) End(_ context.Context, id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return errors.ErrRecordNotFound
	}
	if rec.Status != StatusActive {
		return nil
	}

	rec.Status = StatusEnded
	rec.EndedAt = &endedAt
	r.records[id] = rec
	return nil
}
