package handoff

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/saasgate/tenant-gateway/internal/errors"
	"github.com/saasgate/tenant-gateway/token"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
)

// SessionEncoder mints the signed session token carried in the cookie.
type SessionEncoder interface {
	Encode(claims token.SessionClaims) (string, error)
}

// RecordStarter opens the audit record for an impersonation handoff. It
// is called before the session cookie is emitted; if it fails, no session
// is minted.
type RecordStarter interface {
	StartRecord(ctx context.Context, t Token) (string, error)
}

// Broker redeems handoff tokens: verify, claim once, open the audit
// record, mint a session cookie and compute a token-free redirect URL.
type Broker struct {
	minter     *Minter
	encoder    SessionEncoder
	consumed   ConsumedRepo
	records    RecordStarter
	cookieName string
	log        zerolog.Logger
}

// NewBroker creates a new secure handoff broker
func NewBroker(minter *Minter, encoder SessionEncoder, consumed ConsumedRepo, records RecordStarter, cookieName string, log zerolog.Logger) *Broker {
	return &Broker{
		minter:     minter,
		encoder:    encoder,
		consumed:   consumed,
		records:    records,
		cookieName: cookieName,
		log:        log,
	}
}

// Result is a successful redemption: the session cookie to set and the
// redirect target with the handoff parameter stripped.
type Result struct {
	Cookie      *http.Cookie
	RedirectURL string
	Token       Token
	RecordID    string // empty for secure admin login
}

// Redeem executes the handoff exchange for a raw token carried in the
// query parameter named param. Token errors come back unwrapped in the
// chain so the caller can fall through to the normal unauthenticated
// flow; ErrHandoffConsumed and store failures must fail closed instead.
func (b *Broker) Redeem(ctx context.Context, r *http.Request, param, raw string) (*Result, error) {
	t, err := b.minter.Verify(raw)
	if err != nil {
		return nil, err
	}

	// The consumed entry only needs to outlive the token; one extra
	// minute covers clock skew between replicas.
	ttl := time.Until(t.ExpiresAt) + time.Minute
	claimed, err := b.consumed.Claim(ctx, t.ID, ttl)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "consumed store claim failed: %v", err)
	}
	if !claimed {
		b.log.Warn().Str("token_id", t.ID).Str("tenant", t.TargetTenantID).Msg("handoff token replayed")
		return nil, errors.ErrHandoffConsumed
	}

	var recordID string
	if t.Kind == KindImpersonation {
		recordID, err = b.records.StartRecord(ctx, t)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInternal, "failed to open impersonation record: %v", err)
		}
	}

	claims := sessionClaimsFor(t)
	signed, err := b.encoder.Encode(claims)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "failed to encode session: %v", err)
	}

	b.log.Info().
		Str("token_id", t.ID).
		Str("kind", string(t.Kind)).
		Str("tenant", t.TargetTenantID).
		Str("issued_by", t.IssuedBy).
		Msg("handoff redeemed")

	return &Result{
		Cookie:      b.sessionCookie(r, signed, t.DurationMinutes),
		RedirectURL: strippedURL(r, param),
		Token:       t,
		RecordID:    recordID,
	}, nil
}

// sessionClaimsFor maps a handoff token to the session it mints. An
// impersonation handoff becomes an ordinary tenant user session for the
// target user; a secure admin login keeps the admin as itself with
// super-admin scope.
func sessionClaimsFor(t Token) token.SessionClaims {
	expiresAt := sessionjwt.NowTimeFunc().Add(time.Duration(t.DurationMinutes) * time.Minute)
	if t.Kind == KindImpersonation {
		return token.SessionClaims{
			Subject:   t.TargetUserID,
			TenantID:  t.TargetTenantID,
			ExpiresAt: expiresAt,
		}
	}
	return token.SessionClaims{
		Subject:      t.IssuedBy,
		IsSuperAdmin: true,
		ExpiresAt:    expiresAt,
	}
}

func (b *Broker) sessionCookie(r *http.Request, signed string, durationMinutes int) *http.Cookie {
	return &http.Cookie{
		Name:     b.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   durationMinutes * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecureRequest(r),
	}
}

// strippedURL rebuilds the request URL without the handoff parameter.
// Every other query parameter is preserved; the token string must not
// reach the browser's address bar or history.
func strippedURL(r *http.Request, param string) string {
	query := r.URL.Query()
	query.Del(param)
	if encoded := query.Encode(); encoded != "" {
		return fmt.Sprintf("%s?%s", r.URL.Path, encoded)
	}
	return r.URL.Path
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
