// Package shared holds cross-cutting constants used by multiple feature
// packages.
package shared

// Core permission keys. Keys are stable, uppercase, underscore-delimited
// strings; descriptions live in the permission catalog.
const (
	PermRoleView   = "ROLE_VIEW"
	PermRoleCreate = "ROLE_CREATE"
	PermRoleUpdate = "ROLE_UPDATE"
	PermRoleDelete = "ROLE_DELETE"

	PermStaffView   = "STAFF_VIEW"
	PermStaffCreate = "STAFF_CREATE"
	PermStaffUpdate = "STAFF_UPDATE"

	PermPermissionView   = "PERMISSION_VIEW"
	PermPermissionAssign = "PERMISSION_ASSIGN"

	PermLevelPowerView   = "LEVEL_POWER_VIEW"
	PermLevelPowerManage = "LEVEL_POWER_MANAGE"

	PermAuditView = "AUDIT_VIEW"
)

// CoreScopes lists all permission keys owned by the authorization core.
func CoreScopes() []string {
	return []string{
		PermRoleView,
		PermRoleCreate,
		PermRoleUpdate,
		PermRoleDelete,
		PermStaffView,
		PermStaffCreate,
		PermStaffUpdate,
		PermPermissionView,
		PermPermissionAssign,
		PermLevelPowerView,
		PermLevelPowerManage,
		PermAuditView,
	}
}
