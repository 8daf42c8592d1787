package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/staff"
)

// CredentialSource looks up staff accounts for password verification.
type CredentialSource interface {
	FindByEmail(ctx context.Context, scope authz.Scope, email string) (staff.Staff, error)
}

// Service wraps authentication business rules: password login, token
// issuance and logout-by-revocation.
type Service struct {
	creds   CredentialSource
	tokens  *TokenIssuer
	revoked *RevocationList
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(creds CredentialSource, tokens *TokenIssuer, revoked *RevocationList, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{creds: creds, tokens: tokens, revoked: revoked, logger: logger}
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Principal authz.Principal
}

// Login verifies email/password credentials for a staff account in the
// given scope and issues an access token. Failures are reported uniformly
// as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, scope authz.Scope, email, password string) (Session, error) {
	account, err := s.creds.FindByEmail(ctx, scope, email)
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !account.Active {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	kind := authz.KindPlatformStaff
	if scope == authz.ScopeTenant {
		kind = authz.KindTenantStaff
	}
	power := account.Power
	principal := authz.Principal{
		ID:        account.ID,
		Kind:      kind,
		TenantID:  account.TenantID,
		RoleID:    account.RoleID,
		PowerHint: &power,
	}

	token, claims, err := s.tokens.Issue(principal)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("login",
		slog.String("staff_id", account.ID.String()),
		slog.String("scope", scope.String()))
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Principal: principal}, nil
}

// Logout revokes the token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims Claims) error {
	remaining := time.Until(claims.ExpiresAt.Time)
	return s.revoked.Revoke(ctx, claims.ID, remaining)
}

// Verify parses the token, rejects revoked ids and reconstructs the
// principal.
func (s *Service) Verify(ctx context.Context, tokenString string) (authz.Principal, Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return authz.Principal{}, Claims{}, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return authz.Principal{}, Claims{}, err
	}
	if revoked {
		return authz.Principal{}, Claims{}, ErrTokenRevoked
	}
	principal, err := claims.Principal()
	if err != nil {
		return authz.Principal{}, Claims{}, err
	}
	return principal, claims, nil
}
