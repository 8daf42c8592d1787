package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password and
	// deactivated accounts alike so responses don't leak which it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid is returned for malformed or badly-signed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for tokens on the revocation list.
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims is the JWT payload carried by Atlas access tokens. Kind, tenant
// and role identify the principal; Power is only a hint and is never
// trusted for mutation checks.
type Claims struct {
	Kind     string `json:"kind"`
	TenantID string `json:"tenant_id,omitempty"`
	RoleID   string `json:"role_id,omitempty"`
	Power    *int   `json:"power,omitempty"`
	jwt.RegisteredClaims
}
