package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	role, ok := NormalizeRole(" Operator ")
	require.True(t, ok)
	require.Equal(t, RoleOperator, role)

	_, ok = NormalizeRole("superuser")
	require.False(t, ok)
}

func TestRoleAtLeast(t *testing.T) {
	require.True(t, RoleAtLeast(RoleAdmin, RoleOperator))
	require.True(t, RoleAtLeast(RoleViewer, RoleViewer))
	require.False(t, RoleAtLeast(RoleViewer, RoleOperator))
	require.False(t, RoleAtLeast(Role("guest"), RoleViewer))
	require.Equal(t, []Role{RoleViewer, RoleOperator, RoleAdmin}, Roles())
}
