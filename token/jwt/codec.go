// Package jwt encodes and decodes signed session tokens. Decoding always
// verifies the signature before any claim is trusted; there is no
// unverified decode path.
package jwt

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/saasgate/tenant-gateway/internal/errors"
	"github.com/saasgate/tenant-gateway/token"
	"github.com/saasgate/tenant-gateway/token/keys"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claim names used in session tokens
const (
	ClaimTenant     = "tenant"
	ClaimSuperAdmin = "super_admin"
	ClaimRole       = "role"
	ClaimEmail      = "email"
)

// Codec signs and verifies session tokens with a single gateway key pair.
type Codec struct {
	signer keys.Signer
}

// NewCodec creates a new session token codec
func NewCodec(signer keys.Signer) *Codec {
	return &Codec{signer: signer}
}

// Encode creates a signed session token from the claim set.
func (c *Codec) Encode(claims token.SessionClaims) (string, error) {
	mapClaims := jwtlib.MapClaims{
		"sub": claims.Subject,
		"iat": NowTimeFunc().Unix(),
		"jti": uuid.New().String(),
	}
	if !claims.ExpiresAt.IsZero() {
		mapClaims["exp"] = claims.ExpiresAt.Unix()
	}
	if claims.TenantID != "" {
		mapClaims[ClaimTenant] = claims.TenantID
	}
	if claims.IsSuperAdmin {
		mapClaims[ClaimSuperAdmin] = true
	}
	if claims.Role != "" {
		mapClaims[ClaimRole] = claims.Role
	}
	if claims.Email != "" {
		mapClaims[ClaimEmail] = claims.Email
	}

	signed, err := c.signer.Sign(mapClaims)
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign session token")
	}
	return signed, nil
}

// Decode verifies a raw token and returns its claim set. Failures map to
// the token error taxonomy: ErrTokenMalformed for anything that does not
// parse, ErrTokenSignatureInvalid for a bad signature or signing method,
// and ErrTokenExpired when exp is at or before now. A blank token is
// malformed, never silently "no token".
func (c *Codec) Decode(raw string) (token.SessionClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return token.SessionClaims{}, errors.ErrTokenMalformed
	}

	// Expiry is validated below with strict semantics (exp == now is
	// expired), so the library's own claim validation is disabled.
	parsed, err := jwtlib.ParseWithClaims(raw, jwtlib.MapClaims{}, c.signer.GetVerificationKey, jwtlib.WithoutClaimsValidation())
	if err != nil {
		return token.SessionClaims{}, classifyParseError(err)
	}
	if !parsed.Valid {
		return token.SessionClaims{}, errors.ErrTokenSignatureInvalid
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return token.SessionClaims{}, errors.ErrTokenMalformed
	}

	claims := claimsFromMap(mapClaims)
	if !claims.ExpiresAt.IsZero() && !claims.ExpiresAt.After(NowTimeFunc()) {
		return claims, errors.ErrTokenExpired
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", errors.ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrTokenMalformed, err)
	}
}

func claimsFromMap(mapClaims jwtlib.MapClaims) token.SessionClaims {
	sub, _ := mapClaims["sub"].(string)
	tenantID, _ := mapClaims[ClaimTenant].(string)
	superAdmin, _ := mapClaims[ClaimSuperAdmin].(bool)
	role, _ := mapClaims[ClaimRole].(string)
	email, _ := mapClaims[ClaimEmail].(string)

	claims := token.SessionClaims{
		Subject:      sub,
		TenantID:     tenantID,
		IsSuperAdmin: superAdmin,
		Role:         role,
		Email:        email,
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims
}
