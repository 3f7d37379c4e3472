package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/saasgate/tenant-gateway/hosts"
	"github.com/saasgate/tenant-gateway/internal/errors"
	"github.com/saasgate/tenant-gateway/policy"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified session claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyHostClass stores the classified host
	ContextKeyHostClass ContextKey = "host_class"
)

// Gateway is the per-request decision middleware. It classifies host and
// route, decodes any session cookie, runs a pending handoff exchange, and
// turns the policy decision into proceed / redirect / clear-and-redirect.
// Nothing is cached between requests; every request re-derives its
// decision from scratch.
func (s *Server) Gateway(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostClass := hosts.Classify(r.Host, s.config.GetBaseDomain())
		routeClass := s.routeTable.Classify(r.URL.Path)
		session := s.sessionState(r)

		// A handoff token in the URL only matters when no valid session
		// exists; an existing session wins and the parameter is ignored.
		if raw := r.URL.Query().Get(s.config.GetHandoffParam()); raw != "" && !session.Valid {
			if s.redeemHandoff(w, r, raw) {
				return
			}
		}

		decision := s.engine.Evaluate(hostClass, routeClass, session)
		switch decision.Kind {
		case policy.Allow:
			ctx := context.WithValue(r.Context(), ContextKeyClaims, session.Claims)
			ctx = context.WithValue(ctx, ContextKeyHostClass, hostClass)
			next(w, r.WithContext(ctx))
		case policy.RedirectToLogin:
			s.redirectToLogin(w, r, decision.PreserveReturnPath)
		case policy.RedirectTo:
			http.Redirect(w, r, decision.Path, http.StatusFound)
		case policy.ClearSessionAndRedirectToLogin:
			s.clearSessionCookie(w, r)
			s.redirectToLogin(w, r, false)
		}
	}
}

// sessionState decodes the session cookie. A missing cookie is an absent
// session; a cookie that fails verification or expired is present but
// invalid and will be cleared by the policy decision.
func (s *Server) sessionState(r *http.Request) policy.Session {
	cookie, err := r.Cookie(s.config.GetCookieName())
	if err != nil {
		return policy.Absent()
	}

	claims, err := s.codec.Decode(cookie.Value)
	if err != nil {
		return policy.Invalid()
	}
	return policy.Authenticated(claims)
}

// redeemHandoff runs the broker exchange. Returns true when the response
// has been written. A bad token falls through to the normal
// unauthenticated flow; a replayed token or an unreachable store fails
// closed to the login redirect, and no error detail reaches the client.
func (s *Server) redeemHandoff(w http.ResponseWriter, r *http.Request, raw string) bool {
	param := s.config.GetHandoffParam()
	result, err := s.broker.Redeem(r.Context(), r, param, raw)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrTokenMalformed),
			errors.Is(err, errors.ErrTokenSignatureInvalid),
			errors.Is(err, errors.ErrTokenExpired):
			s.log.Debug().Err(err).Msg("handoff token rejected")
			return false
		default:
			s.log.Warn().Err(err).Msg("handoff redemption failed closed")
			s.redirectToLogin(w, r, false)
			return true
		}
	}

	http.SetCookie(w, result.Cookie)
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	return true
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, preserveReturnPath bool) {
	target := s.config.GetLoginPath()
	if preserveReturnPath {
		query := url.Values{"redirect": {r.URL.Path}}
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// clearSessionCookie expires the session cookie on the current host.
func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   getScheme(r) == "https",
	})
}
