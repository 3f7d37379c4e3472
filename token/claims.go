// Package token defines the decoded session claim set shared by the
// codec, the policy engine, and the handoff broker.
package token

import "time"

// SessionClaims is the decoded content of a session token. A claim set is
// only trusted after the codec has verified the token signature.
//
// A claim set with neither a TenantID nor IsSuperAdmin set represents an
// ordinary platform user and is never tenant-scoped.
type SessionClaims struct {
	Subject      string
	TenantID     string // empty for platform users and super admins
	IsSuperAdmin bool
	Role         string
	Email        string
	ExpiresAt    time.Time
}

// IsTenantScoped reports whether the session belongs to a specific tenant.
func (c SessionClaims) IsTenantScoped() bool {
	return c.TenantID != ""
}
