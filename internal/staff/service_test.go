package staff

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-saas/atlas/internal/audit"
	"github.com/atlas-saas/atlas/internal/authz"
	"github.com/atlas-saas/atlas/internal/platform/httpx"
)

type mockRepository struct {
	staff     map[uuid.UUID]Staff
	byEmail   map[string]uuid.UUID
	createErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{staff: make(map[uuid.UUID]Staff), byEmail: make(map[string]uuid.UUID)}
}

func (m *mockRepository) Get(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID) (Staff, error) {
	s, ok := m.staff[staffID]
	if !ok {
		return Staff{}, ErrNotFound
	}
	return s, nil
}

func (m *mockRepository) List(ctx context.Context, scope authz.Scope, tenantID uuid.UUID) ([]Staff, error) {
	out := []Staff{}
	for _, s := range m.staff {
		if s.Scope == scope {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, s Staff) (Staff, error) {
	if m.createErr != nil {
		return Staff{}, m.createErr
	}
	if _, taken := m.byEmail[s.Email]; taken {
		return Staff{}, ErrEmailTaken
	}
	s.ID = uuid.New()
	m.staff[s.ID] = s
	m.byEmail[s.Email] = s.ID
	return s, nil
}

func (m *mockRepository) Update(ctx context.Context, scope authz.Scope, tenantID, staffID uuid.UUID, params UpdateParams) (Staff, error) {
	s, ok := m.staff[staffID]
	if !ok {
		return Staff{}, ErrNotFound
	}
	if params.Name != nil {
		s.Name = *params.Name
	}
	if params.PasswordHash != nil {
		s.PasswordHash = *params.PasswordHash
	}
	if params.Active != nil {
		s.Active = *params.Active
	}
	if params.RoleID != nil {
		s.RoleID = *params.RoleID
	}
	if params.RoleName != nil {
		s.RoleName = *params.RoleName
	}
	if params.Power != nil {
		s.Power = *params.Power
	}
	m.staff[staffID] = s
	return s, nil
}

// FindStaff lets the repository double as the resolver's StaffStore.
func (m *mockRepository) FindStaff(ctx context.Context, scope authz.Scope, staffID uuid.UUID) (authz.StaffRecord, error) {
	s, ok := m.staff[staffID]
	if !ok {
		return authz.StaffRecord{}, authz.ErrStaffNotFound
	}
	return authz.StaffRecord{ID: s.ID, Power: s.Power, Active: s.Active}, nil
}

type mockRoleStore struct {
	roles map[uuid.UUID]authz.Role
}

func (m *mockRoleStore) FindRole(ctx context.Context, scope authz.Scope, tenantID, roleID uuid.UUID) (authz.Role, error) {
	role, ok := m.roles[roleID]
	if !ok {
		return authz.Role{}, authz.ErrRoleNotFound
	}
	return role, nil
}

func (m *mockRoleStore) RoleNameExists(ctx context.Context, scope authz.Scope, tenantID uuid.UUID, normalizedName string) (bool, error) {
	return false, nil
}

type mockLevelStore struct {
	levels map[string]authz.NamedPowerLevel
}

func (m *mockLevelStore) FindLevelByName(ctx context.Context, tenantID uuid.UUID, roleName string) (authz.NamedPowerLevel, error) {
	level, ok := m.levels[authz.NormalizeRoleName(roleName)]
	if !ok {
		return authz.NamedPowerLevel{}, authz.ErrLevelNotFound
	}
	return level, nil
}

type mockAdminStore struct{}

func (mockAdminStore) SuperAdminPower(ctx context.Context, id uuid.UUID) (int, error) {
	return 0, authz.ErrStaffNotFound
}

type recordingSink struct {
	events []audit.Event
}

func (r *recordingSink) Record(ctx context.Context, ev audit.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	repo   *mockRepository
	roles  *mockRoleStore
	levels *mockLevelStore
	sink   *recordingSink
	svc    *Service
}

func newFixture() *fixture {
	repo := newMockRepository()
	rolesStore := &mockRoleStore{roles: make(map[uuid.UUID]authz.Role)}
	levels := &mockLevelStore{levels: make(map[string]authz.NamedPowerLevel)}
	resolver := authz.NewResolver(rolesStore, repo, levels, mockAdminStore{}, nil)
	guard := authz.NewGuard(resolver, rolesStore, levels)
	sink := &recordingSink{}
	return &fixture{
		repo:   repo,
		roles:  rolesStore,
		levels: levels,
		sink:   sink,
		svc:    NewService(repo, guard, rolesStore, levels, sink, nil),
	}
}

func (f *fixture) staffActor(power int) authz.Principal {
	s := Staff{Scope: authz.ScopeTenant, TenantID: uuid.New(), Name: "Actor", Email: uuid.NewString() + "@example.com", Power: power, Active: true}
	created, _ := f.repo.Create(context.Background(), s)
	return authz.Principal{ID: created.ID, Kind: authz.KindTenantStaff, TenantID: created.TenantID}
}

func TestCreateTenantStaffDerivesPowerFromLevel(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)
	f.levels.levels["TEACHER"] = authz.NamedPowerLevel{TenantID: actor.TenantID, RoleName: "TEACHER", Power: 30}

	created, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "New Hire",
		Email:    "hire@example.com",
		Password: "correct-horse",
		RoleName: "Teacher",
	})
	require.NoError(t, err)
	assert.Equal(t, 30, created.Power)
	assert.True(t, created.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct-horse")))
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, "STAFF_CREATED", f.sink.events[0].Action)
}

func TestCreateTenantStaffUnregisteredRoleNameResolvesToZero(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)

	created, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "New Hire",
		Email:    "hire2@example.com",
		Password: "correct-horse",
		RoleName: "Unheard Of",
	})
	require.NoError(t, err, "an unregistered role name is the lowest authority, always assignable")
	assert.Equal(t, 0, created.Power)
}

func TestCreateStaffAtActorPowerAllowed(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)
	f.levels.levels["PEER"] = authz.NamedPowerLevel{TenantID: actor.TenantID, RoleName: "PEER", Power: 50}

	_, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "Peer",
		Email:    "peer@example.com",
		Password: "correct-horse",
		RoleName: "Peer",
	})
	assert.NoError(t, err, "staff assignment at exactly the actor's level is permitted")
}

func TestCreateStaffAboveActorPowerDenied(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)
	f.levels.levels["BOSS"] = authz.NamedPowerLevel{TenantID: actor.TenantID, RoleName: "BOSS", Power: 51}

	_, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "Boss",
		Email:    "boss@example.com",
		Password: "correct-horse",
		RoleName: "Boss",
	})
	require.Error(t, err)

	var denial httpx.Denial
	require.ErrorAs(t, err, &denial)
	assert.Contains(t, denial.DenyReason(), "your power (50) is lower than the required power (51)")
}

func TestCreatePlatformStaffUsesRolePower(t *testing.T) {
	f := newFixture()
	admin := authz.Principal{ID: uuid.New(), Kind: authz.KindPlatformSuperAdmin}
	roleID := uuid.New()
	f.roles.roles[roleID] = authz.Role{ID: roleID, Name: "OPERATOR", Power: 200}

	created, err := f.svc.Create(context.Background(), admin, CreateInput{
		Scope:    authz.ScopePlatform,
		Name:     "Operator",
		Email:    "op@example.com",
		Password: "correct-horse",
		RoleID:   roleID,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, created.Power)
	assert.Equal(t, "OPERATOR", created.RoleName)
}

func TestCreatePlatformStaffUnknownRoleIsNotFound(t *testing.T) {
	f := newFixture()
	admin := authz.Principal{ID: uuid.New(), Kind: authz.KindPlatformSuperAdmin}

	_, err := f.svc.Create(context.Background(), admin, CreateInput{
		Scope:    authz.ScopePlatform,
		Name:     "Operator",
		Email:    "op@example.com",
		Password: "correct-horse",
		RoleID:   uuid.New(),
	})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateStaffDuplicateEmail(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)

	in := CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "One",
		Email:    "same@example.com",
		Password: "correct-horse",
		RoleName: "anything",
	}
	_, err := f.svc.Create(context.Background(), actor, in)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), actor, in)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateStaffRoleChangeRerunsHierarchyCheck(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)
	f.levels.levels["JUNIOR"] = authz.NamedPowerLevel{TenantID: actor.TenantID, RoleName: "JUNIOR", Power: 10}
	f.levels.levels["SENIOR"] = authz.NamedPowerLevel{TenantID: actor.TenantID, RoleName: "SENIOR", Power: 90}

	created, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "Member",
		Email:    "member@example.com",
		Password: "correct-horse",
		RoleName: "Junior",
	})
	require.NoError(t, err)

	senior := "Senior"
	_, err = f.svc.Update(context.Background(), actor, UpdateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		StaffID:  created.ID,
		RoleName: &senior,
	})
	require.Error(t, err, "promotion above the actor's own power must be denied")

	junior := "Junior"
	updated, err := f.svc.Update(context.Background(), actor, UpdateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		StaffID:  created.ID,
		RoleName: &junior,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Power)
}

func TestUpdateStaffPasswordIsRehashed(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)
	created, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Name:     "Member",
		Email:    "pw@example.com",
		Password: "old-password-1",
		RoleName: "anything",
	})
	require.NoError(t, err)

	newPass := "new-password-1"
	updated, err := f.svc.Update(context.Background(), actor, UpdateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		StaffID:  created.ID,
		Password: &newPass,
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(newPass)))
}

func TestCreateStaffValidatesRequiredFields(t *testing.T) {
	f := newFixture()
	actor := f.staffActor(50)

	_, err := f.svc.Create(context.Background(), actor, CreateInput{
		Scope:    authz.ScopeTenant,
		TenantID: actor.TenantID,
		Email:    "x@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
