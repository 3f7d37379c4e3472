// Package policy contains the access decision engine. It is a pure,
// deterministic decision table over (host class, route class, session
// state); it retains nothing between requests and performs no I/O, which
// is what makes the gateway safe to scale horizontally with no
// coordination.
package policy

import (
	"github.com/saasgate/tenant-gateway/hosts"
	"github.com/saasgate/tenant-gateway/routes"
	"github.com/saasgate/tenant-gateway/token"
)

// DecisionKind enumerates the terminal outcomes of the engine.
type DecisionKind string

const (
	Allow                          DecisionKind = "allow"
	RedirectToLogin                DecisionKind = "redirect_to_login"
	RedirectTo                     DecisionKind = "redirect_to"
	ClearSessionAndRedirectToLogin DecisionKind = "clear_session_and_redirect_to_login"
)

// Decision is the terminal output of the engine for a single request. It
// is produced once and never mutated.
type Decision struct {
	Kind DecisionKind

	// PreserveReturnPath is only meaningful for RedirectToLogin.
	PreserveReturnPath bool

	// Path is only meaningful for RedirectTo.
	Path string
}

// Session describes the session accompanying a request. Present is false
// when no session cookie arrived at all; Valid is false when the cookie
// held a token that was malformed, unverifiable, or expired. Claims are
// only meaningful when Valid is true.
type Session struct {
	Present bool
	Valid   bool
	Claims  token.SessionClaims
}

// Absent is the session state of a request with no session cookie.
func Absent() Session {
	return Session{}
}

// Invalid is the session state of a request whose cookie failed
// verification or expired.
func Invalid() Session {
	return Session{Present: true}
}

// Authenticated is the session state of a request with a verified claim set.
func Authenticated(claims token.SessionClaims) Session {
	return Session{Present: true, Valid: true, Claims: claims}
}

// Engine evaluates the access decision table.
type Engine struct{}

// NewEngine creates a new access policy engine
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs the decision table top to bottom; the first matching row
// wins. Session validity rows are checked before any allow row, so an
// invalid session can never fall through into a permissive branch. The
// result is always one of the four decision kinds; there is no unknown
// state.
func (e *Engine) Evaluate(host hosts.Class, route routes.Class, session Session) Decision {
	// Public routes are reachable in every host and session state.
	if route == routes.Public {
		return Decision{Kind: Allow}
	}

	if !session.Present {
		return Decision{Kind: RedirectToLogin, PreserveReturnPath: true}
	}

	if !session.Valid {
		return Decision{Kind: ClearSessionAndRedirectToLogin}
	}

	if host.IsPlatform() {
		return e.evaluatePlatform(route, session.Claims)
	}
	return e.evaluateTenant(host.Subdomain, route, session.Claims)
}

func (e *Engine) evaluatePlatform(route routes.Class, claims token.SessionClaims) Decision {
	// A tenant-scoped session must never exist on the platform host,
	// whatever the route class.
	if claims.IsTenantScoped() {
		return Decision{Kind: ClearSessionAndRedirectToLogin}
	}

	switch route {
	case routes.PlatformOnly, routes.Unrestricted:
		// Super admins and ordinary platform users both pass; finer
		// authorization inside the admin area belongs to the handlers.
		return Decision{Kind: Allow}
	case routes.TenantOnly:
		// Tenant-only UI does not exist on the platform host. Not an
		// auth failure, so no session is cleared.
		return Decision{Kind: RedirectTo, Path: "/"}
	}
	return Decision{Kind: RedirectToLogin}
}

func (e *Engine) evaluateTenant(subdomain string, route routes.Class, claims token.SessionClaims) Decision {
	switch route {
	case routes.TenantOnly, routes.Unrestricted:
		if claims.TenantID == subdomain {
			return Decision{Kind: Allow}
		}
		if claims.IsSuperAdmin {
			// Explicit super-admin override for cross-tenant access.
			return Decision{Kind: Allow}
		}
		return Decision{Kind: ClearSessionAndRedirectToLogin}
	case routes.PlatformOnly:
		// Platform-only UI is invisible on tenant hosts, not an auth
		// failure.
		return Decision{Kind: RedirectTo, Path: "/"}
	}
	return Decision{Kind: RedirectToLogin}
}
