package roles

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// memoryRepo backs both the admin write path and the rbac snapshot loader.
type memoryRepo struct {
	mu       sync.Mutex
	roles    []rbac.Role
	assigned map[string]bool
}

func (m *memoryRepo) ListRoleDefinitions(ctx context.Context) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rbac.Role(nil), m.roles...), nil
}

func (m *memoryRepo) index(id string) int {
	for i, r := range m.roles {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *memoryRepo) CreateRole(ctx context.Context, role rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(role.ID) >= 0 {
		return ErrDuplicate
	}
	m.roles = append(m.roles, role)
	return nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, role rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(role.ID)
	if i < 0 {
		return ErrNotFound
	}
	m.roles[i] = role
	return nil
}

func (m *memoryRepo) DeleteRole(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return ErrNotFound
	}
	if m.assigned[id] {
		return ErrInUse
	}
	m.roles = append(m.roles[:i], m.roles[i+1:]...)
	return nil
}

type auditSpy struct{ actions []string }

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

var (
	admin = rbac.Subject{UserID: "1", RoleID: rbac.RoleAdministrator}
	hr    = rbac.Subject{UserID: "2", RoleID: rbac.RoleHRAdministrator}
)

type fixture struct {
	svc        *Service
	repo       *memoryRepo
	snapshot   *rbac.Service
	authorizer *rbac.Authorizer
	audit      *auditSpy
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memoryRepo{roles: rbac.BuiltinRoles(), assigned: map[string]bool{rbac.RoleEmployee: true}}
	snapshot := rbac.NewService(rbac.ServiceConfig{Repo: repo, Logger: logger, Fallback: rbac.BuiltinRoles()})
	authorizer := rbac.NewAuthorizer(snapshot.Store())
	spy := &auditSpy{}
	return fixture{
		svc:        NewService(repo, snapshot, authorizer, spy, logger),
		repo:       repo,
		snapshot:   snapshot,
		authorizer: authorizer,
		audit:      spy,
	}
}

func TestCreateRoleReloadsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := Input{ID: "payroll-clerk", Name: "Payroll Clerk", Level: 4, Permissions: []PermissionInput{
		{Action: "READ", Resource: "payroll", Scope: "department"},
		{Action: "manage", Resource: "payroll", Scope: "department"},
	}}
	role, err := f.svc.CreateRole(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, rbac.PayrollRead, role.Permissions[0].Permission)

	clerk := rbac.Subject{UserID: "50", RoleID: "payroll-clerk", DepartmentID: "3"}
	assert.True(t, f.authorizer.HasPermission(clerk, rbac.ActionManage, rbac.ResourcePayroll, &rbac.Target{DepartmentID: "3"}))
	assert.False(t, f.authorizer.HasPermission(clerk, rbac.ActionManage, rbac.ResourcePayroll, &rbac.Target{DepartmentID: "4"}))
	assert.Equal(t, []string{"role.create"}, f.audit.actions)

	_, err = f.svc.CreateRole(ctx, admin, in)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateRoleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRole(ctx, admin, Input{ID: "x", Name: "X", Level: 3, Permissions: []PermissionInput{{Action: "teleport", Resource: "employee"}}})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateRole(ctx, admin, Input{ID: "x", Name: "X", Level: 3, Permissions: []PermissionInput{{Action: "read", Resource: "employee", Scope: "team"}}})
	assert.ErrorIs(t, err, rbac.ErrInvalidScope)

	_, err = f.svc.CreateRole(ctx, hr, Input{ID: "super", Name: "Super", Level: 9})
	assert.ErrorIs(t, err, ErrAboveActor)
}

func TestUpdateAndDeleteRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.svc.UpdateRole(ctx, hr, rbac.RoleViewer, Input{Name: "Viewer", Level: 1, Permissions: []PermissionInput{{Action: "read", Resource: "report"}}})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleViewer, role.ID)

	viewer := rbac.Subject{UserID: "9", RoleID: rbac.RoleViewer}
	assert.True(t, f.authorizer.HasPermission(viewer, rbac.ActionRead, rbac.ResourceReport, nil))
	assert.False(t, f.authorizer.HasPermission(viewer, rbac.ActionRead, rbac.ResourceEmployee, nil))

	_, err = f.svc.UpdateRole(ctx, hr, rbac.RoleHRAdministrator, Input{Name: "HR", Level: 8})
	assert.ErrorIs(t, err, ErrOwnRole)
	_, err = f.svc.UpdateRole(ctx, hr, rbac.RoleAdministrator, Input{Name: "Admin", Level: 8})
	assert.ErrorIs(t, err, ErrAboveActor)
	_, err = f.svc.UpdateRole(ctx, admin, "missing", Input{Name: "Missing", Level: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteRole(ctx, admin, rbac.RoleEmployee), httpx.ErrConflict)
	require.NoError(t, f.svc.DeleteRole(ctx, admin, rbac.RoleViewer))
	_, ok := f.snapshot.Store().GetRole(rbac.RoleViewer)
	assert.False(t, ok)
	assert.False(t, f.authorizer.HasLevel(viewer, 1), "deleted role denies everything")
}

func TestHandlerRequiresManageAndLevel(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/roles", NewHandler(logger, f.svc, rbac.Middleware{Authorizer: f.authorizer, Logger: logger}).MountRoutes)

	do := func(method, path, body string, subject rbac.Subject) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(rbac.ContextWithSubject(req.Context(), subject))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	body := `{"id":"auditor","name":"Auditor","level":3,"permissions":[{"action":"read","resource":"report"}]}`
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/roles", body, hr).Code)

	rr := do(http.MethodPost, "/roles", body, admin)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(http.MethodGet, "/roles/auditor", "", hr)
	require.Equal(t, http.StatusOK, rr.Code)
	var role rbac.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &role))
	assert.Equal(t, 3, role.Level)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/roles", `{"id":"bad","name":"Bad","level":11}`, admin).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/roles/auditor", "", admin).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/roles/auditor", "", admin).Code)
}
