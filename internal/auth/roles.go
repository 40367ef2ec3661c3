package auth

import (
	"slices"
	"strings"
)

// Role is an admin user's access level. Viewers read, operators record
// readings, customers and payments, admins manage rates and bill runs.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// roleOrder lists roles from least to most privileged.
var roleOrder = []Role{RoleViewer, RoleOperator, RoleAdmin}

// Roles returns the known roles, least privileged first.
func Roles() []Role {
	return slices.Clone(roleOrder)
}

// NormalizeRole trims and lower-cases value and reports whether it names a
// known role.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(roleOrder, role) {
		return role, true
	}
	return "", false
}

// RoleAtLeast reports whether role grants everything required grants.
// Unknown roles grant nothing.
func RoleAtLeast(role Role, required Role) bool {
	return slices.Index(roleOrder, role) >= slices.Index(roleOrder, required) && slices.Contains(roleOrder, role)
}
