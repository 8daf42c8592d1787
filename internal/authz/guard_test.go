package authz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	*resolverFixture
	g *Guard
}

func newGuardFixture() *guardFixture {
	f := newResolverFixture()
	return &guardFixture{resolverFixture: f, g: NewGuard(f.r, f.roles, f.levels)}
}

// staffActor registers an active staff record with the given power and
// returns a principal for it.
func (f *guardFixture) staffActor(power int) Principal {
	id := uuid.New()
	f.staff.staff[id] = StaffRecord{ID: id, Power: power, Active: true}
	return Principal{ID: id, Kind: KindTenantStaff, TenantID: uuid.New()}
}

func TestGuardRoleCreateRequiresStrictlyLowerPower(t *testing.T) {
	cases := []struct {
		actorPower int
		reqPower   int
		allowed    bool
	}{
		{50, 49, true},
		{50, 50, false},
		{50, 51, false},
		{1, 0, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("actor%d_req%d", tc.actorPower, tc.reqPower), func(t *testing.T) {
			f := newGuardFixture()
			actor := f.staffActor(tc.actorPower)

			decision, err := f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "NEW ROLE", tc.reqPower)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if !tc.allowed {
				assert.Contains(t, decision.Reason, "lower than your own")
			}
		})
	}
}

func TestGuardRoleCreateBypassForTenantOwner(t *testing.T) {
	f := newGuardFixture()
	owner := Principal{ID: uuid.New(), Kind: KindTenantOwner, TenantID: uuid.New()}

	decision, err := f.g.GuardRoleCreate(context.Background(), owner, ScopeTenant, owner.TenantID, "HEAD", 5000)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "unconditional authority skips the ceiling")
}

func TestGuardRoleCreateRejectsEmptyName(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)

	decision, err := f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "   ", 10)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "role name required", decision.Reason)
}

func TestGuardRoleCreateRejectsNegativePower(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)

	decision, err := f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "ROLE", -1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestGuardRoleCreateDetectsCaseInsensitiveDuplicate(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)
	f.roles.names["CLASSTEACHER"] = true

	decision, err := f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "class Teacher", 10)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "already exists")
}

func TestGuardRoleCreateDeniesOnLevelPowerMismatch(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)
	f.levels.put(actor.TenantID, "LIBRARIAN", 30)

	decision, err := f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "Librarian", 25)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "already registered with power 30")
}

func TestGuardRoleCreateAllowsMatchingLevelPower(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)
	f.levels.put(actor.TenantID, "LIBRARIAN", 30)

	decision, err := f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "Librarian", 30)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGuardRoleUpdateDeniesEqualOrHigherTarget(t *testing.T) {
	cases := []struct {
		actorPower int
		rolePower  int
		newPower   int
		allowed    bool
		reason     string
	}{
		{50, 49, 10, true, ""},
		{50, 50, 10, false, "equal or higher authority"},
		{50, 51, 10, false, "equal or higher authority"},
		{50, 10, 50, false, "your level or higher"},
		{50, 10, 49, true, ""},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("actor%d_role%d_new%d", tc.actorPower, tc.rolePower, tc.newPower), func(t *testing.T) {
			f := newGuardFixture()
			actor := f.staffActor(tc.actorPower)
			role := Role{ID: uuid.New(), TenantID: actor.TenantID, Name: "TARGET", Power: tc.rolePower}

			decision, err := f.g.GuardRoleUpdate(context.Background(), actor, role, tc.newPower)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if tc.reason != "" {
				assert.Contains(t, decision.Reason, tc.reason)
			}
		})
	}
}

func TestGuardRoleDeleteDeniesEqualOrHigherTarget(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)

	decision, err := f.g.GuardRoleDelete(context.Background(), actor, Role{Power: 50})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = f.g.GuardRoleDelete(context.Background(), actor, Role{Power: 49})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGuardStaffAssignAllowsEqualPower(t *testing.T) {
	cases := []struct {
		actorPower  int
		targetPower int
		allowed     bool
	}{
		{50, 49, true},
		{50, 50, true}, // staff comparator is non-strict, unlike role mutations
		{50, 51, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("actor%d_target%d", tc.actorPower, tc.targetPower), func(t *testing.T) {
			f := newGuardFixture()
			actor := f.staffActor(tc.actorPower)

			decision, err := f.g.GuardStaffAssign(context.Background(), actor, tc.targetPower)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if !tc.allowed {
				assert.Contains(t, decision.Reason, "insufficient power level")
			}
		})
	}
}

func TestGuardStaffAssignBypassForSuperAdmin(t *testing.T) {
	f := newGuardFixture()

	decision, err := f.g.GuardStaffAssign(context.Background(), Principal{ID: uuid.New(), Kind: KindPlatformSuperAdmin}, 5000)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGuardPropagatesResolverFailure(t *testing.T) {
	f := newGuardFixture()
	actor := f.staffActor(50)
	f.staff.findErr = errors.New("timeout")

	_, err := f.g.GuardStaffAssign(context.Background(), actor, 10)
	require.Error(t, err)

	_, err = f.g.GuardRoleCreate(context.Background(), actor, ScopeTenant, actor.TenantID, "ROLE", 10)
	require.Error(t, err)
}
