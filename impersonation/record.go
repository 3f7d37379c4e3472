// Package impersonation manages the audit trail for admin-initiated
// cross-domain sessions and mints the handoff tokens that start them.
package impersonation

import "time"

// Status of an impersonation session record.
type Status string

const (
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Record is the audit trail of one impersonation session. A record is
// immutable once it leaves the Active status.
type Record struct {
	ID                 string
	TenantID           string
	ImpersonatorID     string
	ImpersonatedUserID string
	Reason             string
	StartedAt          time.Time
	EndedAt            *time.Time
	ExpiresAt          time.Time
	Status             Status
}

// EffectiveStatus resolves the status at the given time: an Active record
// whose duration has elapsed reads as Expired without a store write.
func (r Record) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusActive && !r.ExpiresAt.After(now) {
		return StatusExpired
	}
	return r.Status
}
