package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atlas-saas/atlas/internal/authz"
)

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

// Issue signs a token for the principal. Every token gets a fresh jti so
// individual tokens can be revoked on logout.
func (ti *TokenIssuer) Issue(p authz.Principal) (string, Claims, error) {
	now := time.Now()
	claims := Claims{
		Kind: p.Kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   p.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	if p.TenantID != uuid.Nil {
		claims.TenantID = p.TenantID.String()
	}
	if p.RoleID != uuid.Nil {
		claims.RoleID = p.RoleID.String()
	}
	if p.PowerHint != nil {
		hint := *p.PowerHint
		claims.Power = &hint
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and standard claims and returns the payload.
func (ti *TokenIssuer) Parse(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithIssuer(ti.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrTokenInvalid
	}
	return *claims, nil
}

// Principal reconstructs the request principal from verified claims.
func (c Claims) Principal() (authz.Principal, error) {
	kind, ok := authz.ParseKind(c.Kind)
	if !ok {
		return authz.Principal{}, fmt.Errorf("%w: unknown principal kind %q", ErrTokenInvalid, c.Kind)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	p := authz.Principal{ID: id, Kind: kind, PowerHint: c.Power}
	if c.TenantID != "" {
		if p.TenantID, err = uuid.Parse(c.TenantID); err != nil {
			return authz.Principal{}, fmt.Errorf("%w: bad tenant id", ErrTokenInvalid)
		}
	}
	if c.RoleID != "" {
		if p.RoleID, err = uuid.Parse(c.RoleID); err != nil {
			return authz.Principal{}, fmt.Errorf("%w: bad role id", ErrTokenInvalid)
		}
	}
	return p, nil
}
