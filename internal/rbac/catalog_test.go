package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	assert.Equal(t, Permission{Action: "read", Resource: "employee"}, Lookup("EMPLOYEE_READ"))
	assert.Equal(t, LeaveApprove, Lookup("LEAVE_APPROVE"))
	assert.Panics(t, func() { Lookup("EMPLOYEE_TELEPORT") })
}

func TestCatalogListing(t *testing.T) {
	entries := Catalog()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Name, entries[i].Name)
	}
	for _, e := range entries {
		if e.Name == "LEAVE_APPROVE" {
			assert.Equal(t, "Approve Leave", e.Label)
			return
		}
	}
	t.Fatal("LEAVE_APPROVE missing from catalog")
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(PayrollManage))
	assert.True(t, Known(Permission{Action: ActionRead, Resource: ResourceAny}))
	assert.False(t, Known(Permission{Action: "teleport", Resource: ResourceAny}))
	assert.False(t, Known(Permission{Action: ActionRead, Resource: "spaceship"}))
	assert.Contains(t, Resources(), ResourceLeave)
	assert.NotContains(t, Resources(), ResourceAny)
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "employee.read", EmployeeRead.String())
}

func TestExpandWildcards(t *testing.T) {
	perms := []ScopedPermission{
		{Permission: Permission{Action: ActionRead, Resource: ResourceAny}, Scope: ScopeDepartment},
		{Permission: LeaveCreate, Scope: ScopeOwn},
	}
	out := ExpandWildcards(perms, []string{ResourceEmployee, ResourceAny, "", ResourceLeave})

	require.Len(t, out, 3)
	assert.Equal(t, ScopedPermission{Permission: EmployeeRead, Scope: ScopeDepartment}, out[0])
	assert.Equal(t, ScopedPermission{Permission: LeaveRead, Scope: ScopeDepartment}, out[1])
	assert.Equal(t, ScopedPermission{Permission: LeaveCreate, Scope: ScopeOwn}, out[2])
	assert.Equal(t, ResourceAny, perms[0].Resource, "input untouched")

	roles := ExpandRoles([]Role{{ID: "r", Level: 1, Permissions: perms}}, Resources())
	a := newTestAuthorizer(roles...)
	subject := Subject{UserID: "u1", RoleID: "r", DepartmentID: "d1"}
	assert.True(t, a.HasPermission(subject, ActionRead, ResourcePayroll, &Target{DepartmentID: "d1"}))
	assert.False(t, a.HasPermission(subject, ActionRead, ResourcePayroll, &Target{DepartmentID: "d2"}))
}

func TestScopeSatisfied(t *testing.T) {
	subject := Subject{UserID: "u1", DepartmentID: "d1"}
	assert.True(t, ScopeSatisfied(ScopeAll, subject, nil))
	assert.True(t, ScopeSatisfied("", subject, nil))
	assert.False(t, ScopeSatisfied(ScopeOwn, Subject{}, &Target{}))
	assert.False(t, ScopeSatisfied(ScopeOwn, Subject{}, &Target{OwnerUserID: "u1"}))
	assert.True(t, ScopeSatisfied(ScopeOwn, subject, &Target{OwnerUserID: "u1"}))
	assert.False(t, ScopeSatisfied(ScopeDepartment, Subject{UserID: "u1"}, &Target{DepartmentID: ""}))
	assert.True(t, ScopeSatisfied(ScopeDepartment, subject, &Target{DepartmentID: "d1"}))
	assert.False(t, ScopeSatisfied(Scope("ALL"), subject, nil))
}
