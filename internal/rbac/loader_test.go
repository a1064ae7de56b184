package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRoles = `
roles:
  - id: employee
    name: Employee
    level: 2
    permissions:
      - {action: READ, resource: Employee, scope: own}
      - {action: read, resource: department}
  - id: department-manager
    name: Department Manager
    description: Approves leave
    level: 6
    permissions:
      - action: approve
        resource: leave
        scope: department
`

func TestParseRoles(t *testing.T) {
	roles, err := ParseRoles([]byte(sampleRoles))
	require.NoError(t, err)
	require.Len(t, roles, 2)

	emp := roles[0]
	assert.Equal(t, "employee", emp.ID)
	require.Len(t, emp.Permissions, 2)
	assert.Equal(t, ScopedPermission{Permission: EmployeeRead, Scope: ScopeOwn}, emp.Permissions[0])
	assert.Equal(t, ScopeAll, emp.Permissions[1].Scope, "missing scope loads as all")

	mgr := roles[1]
	assert.Equal(t, 6, mgr.Level)
	assert.Equal(t, "Approves leave", mgr.Description)
	assert.Equal(t, ScopeDepartment, mgr.Permissions[0].Scope)
}

func TestParseRolesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown scope": `
roles:
  - id: a
    level: 1
    permissions:
      - {action: read, resource: employee, scope: team}`,
		"zero level": `
roles:
  - id: a
    level: 0`,
		"duplicate id": `
roles:
  - id: a
    level: 1
  - id: a
    level: 2`,
		"missing resource": `
roles:
  - id: a
    level: 1
    permissions:
      - {action: read}`,
		"missing id": `
roles:
  - name: nobody
    level: 1`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoles([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRole)
		})
	}

	_, err := ParseRoles([]byte("roles: ["))
	require.Error(t, err)
}

func TestLoadRolesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRoles), 0o600))

	roles, err := LoadRolesFile(path)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	_, err = LoadRolesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope(" Department ")
	require.NoError(t, err)
	assert.Equal(t, ScopeDepartment, s)

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, s)

	_, err = ParseScope("company")
	assert.ErrorIs(t, err, ErrInvalidScope)
}
