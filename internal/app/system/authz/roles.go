// internal/app/system/authz/roles.go
package authz

import "strings"

// Role is the closed set of roles a context can carry.
// RoleSuperAdmin is system-wide; every other role is scoped to one school.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleLeader     Role = "leader"
	RoleAnimator   Role = "animator"
	RoleUser       Role = "user"
	RoleInactive   Role = "inactive"
)

// ParseRole normalizes s (case, surrounding whitespace, legacy spellings)
// and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "superadmin", "super-admin", "super_admin", "admin":
		return RoleSuperAdmin, true
	case "leader":
		return RoleLeader, true
	case "animator":
		return RoleAnimator, true
	case "user":
		return RoleUser, true
	case "inactive":
		return RoleInactive, true
	}
	return "", false
}

// IsMembershipRole reports whether r can be stored on a school membership.
func (r Role) IsMembershipRole() bool {
	switch r {
	case RoleLeader, RoleAnimator, RoleUser, RoleInactive:
		return true
	}
	return false
}

// IsActive reports whether r is a membership role that grants access to its school.
func (r Role) IsActive() bool {
	return r.IsMembershipRole() && r != RoleInactive
}

func (r Role) String() string {
	return string(r)
}
