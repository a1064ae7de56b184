package rbac

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetRole(t *testing.T) {
	store := NewStore(BuiltinRoles())

	role, ok := store.GetRole(RoleEmployee)
	require.True(t, ok)
	assert.Equal(t, "Employee", role.Name)
	assert.Equal(t, 2, role.Level)

	role, ok = store.GetRole("  department manager ")
	require.True(t, ok)
	assert.Equal(t, RoleDepartmentManager, role.ID)

	_, ok = store.GetRole("ghost-role")
	assert.False(t, ok)

	var empty Store
	_, ok = empty.GetRole(RoleEmployee)
	assert.False(t, ok)
	assert.Zero(t, empty.Version())
	assert.Nil(t, empty.Roles())
}

func TestStoreReplaceSwapsSnapshot(t *testing.T) {
	store := NewStore([]Role{{ID: "a", Name: "A", Level: 1}})
	v1 := store.Version()

	v2 := store.Replace([]Role{{ID: "b", Name: "B", Level: 2}, {ID: "b", Name: "Dup", Level: 3}, {Name: "no id", Level: 1}})
	assert.Greater(t, v2, v1)

	_, ok := store.GetRole("a")
	assert.False(t, ok)
	role, ok := store.GetRole("b")
	require.True(t, ok)
	assert.Equal(t, "B", role.Name)
	assert.Equal(t, 1, store.Len())
}

func TestStoreIsolatedFromCallerSlices(t *testing.T) {
	perms := []ScopedPermission{{Permission: EmployeeRead, Scope: ScopeOwn}}
	store := NewStore([]Role{{ID: "r", Name: "R", Level: 1, Permissions: perms}})

	perms[0].Scope = ScopeAll

	role, ok := store.GetRole("r")
	require.True(t, ok)
	assert.Equal(t, ScopeOwn, role.Permissions[0].Scope)
}

func TestStoreRolesSortedByID(t *testing.T) {
	store := NewStore([]Role{{ID: "zeta", Level: 1}, {ID: "alpha", Level: 1}, {ID: "mid", Level: 1}})
	roles := store.Roles()
	require.Len(t, roles, 3)
	assert.Equal(t, "alpha", roles[0].ID)
	assert.Equal(t, "mid", roles[1].ID)
	assert.Equal(t, "zeta", roles[2].ID)
}

func TestStoreConcurrentReadsDuringReplace(t *testing.T) {
	store := NewStore(BuiltinRoles())
	a := NewAuthorizer(store)
	hr := Subject{UserID: "h1", RoleID: RoleHRAdministrator}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				// Every snapshot installed below grants HR delete on employees.
				if !a.HasPermission(hr, ActionDelete, ResourceEmployee, nil) {
					t.Errorf("decision observed a partial snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		roles := BuiltinRoles()
		roles = append(roles, Role{ID: fmt.Sprintf("extra-%d", i), Name: fmt.Sprintf("Extra %d", i), Level: 1})
		store.Replace(roles)
	}
	wg.Wait()
}
