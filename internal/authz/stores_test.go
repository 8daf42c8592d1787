package authz

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// In-memory stores with error injection, shared across the package tests.

type stubPermissionStore struct {
	grants       map[uuid.UUID][]string
	descriptions map[string]string
	fetchErr     error
	fetchCalls   atomic.Int64
	// fetchGate, when set, is closed by the test to release in-flight fetches.
	fetchGate chan struct{}
}

func newStubPermissionStore() *stubPermissionStore {
	return &stubPermissionStore{
		grants:       make(map[uuid.UUID][]string),
		descriptions: make(map[string]string),
	}
}

func (s *stubPermissionStore) FetchGrants(ctx context.Context, roleID uuid.UUID, scope Scope) ([]string, error) {
	s.fetchCalls.Add(1)
	if s.fetchGate != nil {
		select {
		case <-s.fetchGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	keys, ok := s.grants[roleID]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return keys, nil
}

func (s *stubPermissionStore) Describe(ctx context.Context, key string, scope Scope) (string, error) {
	desc, ok := s.descriptions[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return desc, nil
}

type stubRoleStore struct {
	roles   map[uuid.UUID]Role
	names   map[string]bool
	findErr error
}

func newStubRoleStore() *stubRoleStore {
	return &stubRoleStore{roles: make(map[uuid.UUID]Role), names: make(map[string]bool)}
}

func (s *stubRoleStore) FindRole(ctx context.Context, scope Scope, tenantID, roleID uuid.UUID) (Role, error) {
	if s.findErr != nil {
		return Role{}, s.findErr
	}
	role, ok := s.roles[roleID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (s *stubRoleStore) RoleNameExists(ctx context.Context, scope Scope, tenantID uuid.UUID, normalizedName string) (bool, error) {
	if s.findErr != nil {
		return false, s.findErr
	}
	return s.names[normalizedName], nil
}

type stubLevelStore struct {
	levels  map[string]NamedPowerLevel // keyed by tenantID|name
	findErr error
}

func newStubLevelStore() *stubLevelStore {
	return &stubLevelStore{levels: make(map[string]NamedPowerLevel)}
}

func levelKey(tenantID uuid.UUID, name string) string {
	return tenantID.String() + "|" + name
}

func (s *stubLevelStore) put(tenantID uuid.UUID, name string, power int) {
	s.levels[levelKey(tenantID, name)] = NamedPowerLevel{TenantID: tenantID, RoleName: name, Power: power}
}

func (s *stubLevelStore) FindLevelByName(ctx context.Context, tenantID uuid.UUID, roleName string) (NamedPowerLevel, error) {
	if s.findErr != nil {
		return NamedPowerLevel{}, s.findErr
	}
	level, ok := s.levels[levelKey(tenantID, NormalizeRoleName(roleName))]
	if !ok {
		return NamedPowerLevel{}, ErrLevelNotFound
	}
	return level, nil
}

type stubStaffStore struct {
	staff   map[uuid.UUID]StaffRecord
	findErr error
}

func newStubStaffStore() *stubStaffStore {
	return &stubStaffStore{staff: make(map[uuid.UUID]StaffRecord)}
}

func (s *stubStaffStore) FindStaff(ctx context.Context, scope Scope, staffID uuid.UUID) (StaffRecord, error) {
	if s.findErr != nil {
		return StaffRecord{}, s.findErr
	}
	rec, ok := s.staff[staffID]
	if !ok {
		return StaffRecord{}, ErrStaffNotFound
	}
	return rec, nil
}

type stubSuperAdminStore struct {
	powers  map[uuid.UUID]int
	findErr error
}

func newStubSuperAdminStore() *stubSuperAdminStore {
	return &stubSuperAdminStore{powers: make(map[uuid.UUID]int)}
}

func (s *stubSuperAdminStore) SuperAdminPower(ctx context.Context, id uuid.UUID) (int, error) {
	if s.findErr != nil {
		return 0, s.findErr
	}
	power, ok := s.powers[id]
	if !ok {
		return 0, ErrStaffNotFound
	}
	return power, nil
}
