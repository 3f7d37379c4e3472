// Package handoff implements the one-time, cross-domain secure login
// exchange: a platform admin mints a short-lived signed token, carries it
// to a tenant host in a redirect URL, and the broker converts it into a
// session cookie exactly once.
package handoff

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/saasgate/tenant-gateway/internal/errors"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
	"github.com/saasgate/tenant-gateway/token/keys"
)

// Kind discriminates the two handoff flavours. Impersonation assumes the
// identity of a named tenant user and is always audited; a secure admin
// login keeps the admin acting as itself with elevated scope and writes
// no impersonation record.
type Kind string

const (
	KindImpersonation Kind = "impersonation"
	KindSecureLogin   Kind = "secure_login"
)

// Token is the decoded content of a secure handoff credential.
type Token struct {
	ID              string
	Kind            Kind
	TargetTenantID  string
	TargetUserID    string // empty for secure admin login
	IssuedBy        string
	Reason          string
	DurationMinutes int
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// Claim names used in handoff tokens
const (
	claimKind     = "handoff_kind"
	claimTenant   = "tenant"
	claimTarget   = "target_user"
	claimIssuedBy = "issued_by"
	claimReason   = "reason"
	claimDuration = "duration_minutes"
)

// Minter signs and verifies handoff tokens. The token TTL only needs to
// survive a single redirect and is independent of the session duration
// the token will mint.
type Minter struct {
	signer keys.Signer
	ttl    time.Duration
}

// NewMinter creates a new handoff token minter
func NewMinter(signer keys.Signer, ttl time.Duration) *Minter {
	return &Minter{signer: signer, ttl: ttl}
}

// Mint signs a handoff token. IssuedAt and ExpiresAt are set here; the
// caller supplies everything else.
func (m *Minter) Mint(t Token) (string, error) {
	now := sessionjwt.NowTimeFunc()
	claims := jwtlib.MapClaims{
		"jti":         t.ID,
		"iat":         now.Unix(),
		"exp":         now.Add(m.ttl).Unix(),
		claimKind:     string(t.Kind),
		claimTenant:   t.TargetTenantID,
		claimIssuedBy: t.IssuedBy,
		claimReason:   t.Reason,
		claimDuration: t.DurationMinutes,
	}
	if t.TargetUserID != "" {
		claims[claimTarget] = t.TargetUserID
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign handoff token")
	}
	return signed, nil
}

// Verify checks the signature and expiry of a raw handoff token and
// decodes it. The same strict expiry rule as session tokens applies.
func (m *Minter) Verify(raw string) (Token, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, jwtlib.MapClaims{}, m.signer.GetVerificationKey, jwtlib.WithoutClaimsValidation())
	if err != nil {
		return Token{}, classifyParseError(err)
	}
	if !parsed.Valid {
		return Token{}, errors.ErrTokenSignatureInvalid
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Token{}, errors.ErrTokenMalformed
	}

	t, err := tokenFromClaims(mapClaims)
	if err != nil {
		return Token{}, err
	}
	if !t.ExpiresAt.After(sessionjwt.NowTimeFunc()) {
		return Token{}, errors.ErrTokenExpired
	}
	return t, nil
}

func tokenFromClaims(mapClaims jwtlib.MapClaims) (Token, error) {
	jti, _ := mapClaims["jti"].(string)
	kind, _ := mapClaims[claimKind].(string)
	tenantID, _ := mapClaims[claimTenant].(string)
	targetUser, _ := mapClaims[claimTarget].(string)
	issuedBy, _ := mapClaims[claimIssuedBy].(string)
	reason, _ := mapClaims[claimReason].(string)
	duration, _ := mapClaims[claimDuration].(float64)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	t := Token{
		ID:              jti,
		Kind:            Kind(kind),
		TargetTenantID:  tenantID,
		TargetUserID:    targetUser,
		IssuedBy:        issuedBy,
		Reason:          reason,
		DurationMinutes: int(duration),
		IssuedAt:        time.Unix(int64(iat), 0),
		ExpiresAt:       time.Unix(int64(exp), 0),
	}

	if t.ID == "" || t.TargetTenantID == "" || t.IssuedBy == "" || exp == 0 {
		return Token{}, errors.ErrTokenMalformed
	}
	if t.Kind != KindImpersonation && t.Kind != KindSecureLogin {
		return Token{}, errors.ErrTokenMalformed
	}
	if t.Kind == KindImpersonation && t.TargetUserID == "" {
		return Token{}, errors.ErrTokenMalformed
	}
	return t, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", errors.ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrTokenMalformed, err)
	}
}
