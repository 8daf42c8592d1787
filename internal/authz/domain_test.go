package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

func TestNormalizeRoleName(t *testing.T) {
	cases := map[string]string{
		"Class Teacher":   "CLASSTEACHER",
		"CLASS TEACHER":   "CLASSTEACHER",
		" classteacher ":  "CLASSTEACHER",
		"head\tof\nyear":  "HEADOFYEAR",
		"ADMIN":           "ADMIN",
		"  ":              "",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeRoleName(in), "input %q", in)
	}
}

func TestAuthorityClassification(t *testing.T) {
	assert.Equal(t, AuthorityUnconditional, Principal{Kind: KindPlatformSuperAdmin}.Authority())
	assert.Equal(t, AuthorityUnconditional, Principal{Kind: KindTenantOwner}.Authority())
	assert.Equal(t, AuthorityGraded, Principal{Kind: KindPlatformStaff}.Authority())
	assert.Equal(t, AuthorityGraded, Principal{Kind: KindTenantStaff}.Authority())
	assert.Equal(t, AuthorityGraded, Principal{Kind: KindTenantUser}.Authority())
}

func TestPrincipalScope(t *testing.T) {
	assert.Equal(t, ScopePlatform, Principal{Kind: KindPlatformSuperAdmin}.Scope())
	assert.Equal(t, ScopePlatform, Principal{Kind: KindPlatformStaff}.Scope())
	assert.Equal(t, ScopeTenant, Principal{Kind: KindTenantOwner}.Scope())
	assert.Equal(t, ScopeTenant, Principal{Kind: KindTenantStaff}.Scope())
	assert.Equal(t, ScopeTenant, Principal{Kind: KindTenantUser}.Scope())
}

func TestParseKindRoundTrip(t *testing.T) {
	kinds := []PrincipalKind{
		KindPlatformSuperAdmin,
		KindPlatformStaff,
		KindTenantOwner,
		KindTenantStaff,
		KindTenantUser,
	}
	for _, k := range kinds {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("INTRUDER")
	assert.False(t, ok)
}

func TestDecisionErrCarriesDenyReason(t *testing.T) {
	require.NoError(t, Allow().Err())

	err := Deny("nope").Err()
	require.Error(t, err)

	var denial httpx.Denial
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, "nope", denial.DenyReason())
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := Principal{ID: uuid.New(), Kind: KindTenantStaff, TenantID: uuid.New()}
	ctx := ContextWithPrincipal(context.Background(), p)

	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
