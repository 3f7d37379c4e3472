package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/saasgate/tenant-gateway/internal/errors"
	"github.com/saasgate/tenant-gateway/token"
)

// startHandoffRequest is the body of the start secure-login and start
// impersonation endpoints. The UI never constructs or inspects the token
// itself; it only follows the returned redirect URL.
type startHandoffRequest struct {
	TenantID        string `json:"tenantId"`
	TargetUserID    string `json:"targetUserId,omitempty"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"durationMinutes"`
}

type startHandoffResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// RequireSuperAdmin is middleware that gates the handoff API on the
// super-admin claim. Chained after Gateway, which put the verified
// claims into the context.
func (s *Server) RequireSuperAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(ContextKeyClaims).(token.SessionClaims)
		if !ok || !claims.IsSuperAdmin {
			writeJSONError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	}
}

// StartImpersonationHandler mints an impersonation handoff token and
// returns the redirect URL carrying it to the target tenant host.
func (s *Server) StartImpersonationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startHandoffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if req.TenantID == "" || req.TargetUserID == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		s.startHandoff(w, r, req)
	}
}

// StartSecureLoginHandler mints a secure admin login handoff token: the
// admin keeps its own identity on the tenant host and no impersonation
// record is written when it is redeemed.
func (s *Server) StartSecureLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startHandoffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if req.TenantID == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		req.TargetUserID = ""
		s.startHandoff(w, r, req)
	}
}

func (s *Server) startHandoff(w http.ResponseWriter, r *http.Request, req startHandoffRequest) {
	claims, _ := r.Context().Value(ContextKeyClaims).(token.SessionClaims)

	raw, _, err := s.impersonations.Start(r.Context(), req.TenantID, claims.Subject, req.TargetUserID, req.Reason, req.DurationMinutes)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrInvalidReason), errors.Is(err, errors.ErrInvalidDuration):
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
		default:
			s.log.Error().Err(err).Msg("failed to start handoff")
			writeJSONError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, startHandoffResponse{
		RedirectURL: s.handoffRedirectURL(r, req.TenantID, raw),
	})
}

// handoffRedirectURL builds the URL the admin browser follows to the
// tenant host, with the handoff token as its only extra query parameter.
func (s *Server) handoffRedirectURL(r *http.Request, tenantID, rawToken string) string {
	query := url.Values{s.config.GetHandoffParam(): {rawToken}}
	return fmt.Sprintf("%s://%s.%s/?%s", getScheme(r), tenantID, s.config.GetBaseDomain(), query.Encode())
}

// EndImpersonationHandler closes an impersonation session. Ending an
// already-ended session is a no-op.
func (s *Server) EndImpersonationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if err := s.impersonations.End(r.Context(), sessionID); err != nil {
			if errors.Is(err, errors.ErrRecordNotFound) {
				writeJSONError(w, http.StatusNotFound, "not_found")
				return
			}
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to end impersonation")
			writeJSONError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ImpersonationStatusHandler reports whether a session is still active.
func (s *Server) ImpersonationStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		active, err := s.impersonations.IsActive(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, errors.ErrRecordNotFound) {
				writeJSONError(w, http.StatusNotFound, "not_found")
				return
			}
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to read impersonation status")
			writeJSONError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"active": active})
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
