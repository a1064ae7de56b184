package employees

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// RepositoryPort defines data access methods for employees and departments.
type RepositoryPort interface {
	ListEmployees(ctx context.Context, filter ListFilter, limit, offset int) ([]Employee, int, error)
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	CreateEmployee(ctx context.Context, in EmployeeInput) (Employee, error)
	UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (Employee, error)
	DeleteEmployee(ctx context.Context, id int64) error
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error)
	UpdateDepartment(ctx context.Context, id int64, in DepartmentInput) (Department, error)
	DeleteDepartment(ctx context.Context, id int64) error
}

// Service applies per-record authorization to employee data.
type Service struct {
	repo       RepositoryPort
	authorizer *rbac.Authorizer
	audit      shared.AuditRecorder
	logger     *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, authorizer *rbac.Authorizer, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, authorizer: authorizer, audit: audit, logger: logger}
}

// ListEmployees returns the page of employees visible to subject. Department
// and own scoped readers are narrowed to their department or own record.
func (s *Service) ListEmployees(ctx context.Context, subject rbac.Subject, filter ListFilter) ([]Employee, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	scope, ok := s.authorizer.Visibility(subject, rbac.ActionRead, rbac.ResourceEmployee)
	if !ok {
		return nil, page, httpx.ErrForbidden
	}
	switch scope {
	case rbac.ScopeDepartment:
		dept, err := strconv.ParseInt(subject.DepartmentID, 10, 64)
		if err != nil || (filter.DepartmentID != nil && *filter.DepartmentID != dept) {
			return []Employee{}, page, nil
		}
		filter.DepartmentID = &dept
	case rbac.ScopeOwn:
		owner, err := strconv.ParseInt(subject.UserID, 10, 64)
		if err != nil {
			return []Employee{}, page, nil
		}
		filter.OwnerUserID = &owner
	}
	filter.Search = strings.TrimSpace(filter.Search)
	items, total, err := s.repo.ListEmployees(ctx, filter, page.PerPage, page.Offset())
	if err != nil {
		return nil, page, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// GetEmployee returns one employee if subject may read it.
func (s *Service) GetEmployee(ctx context.Context, subject rbac.Subject, id int64) (Employee, error) {
	e, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if !s.authorizer.HasPermission(subject, rbac.ActionRead, rbac.ResourceEmployee, e.Target()) {
		return Employee{}, httpx.ErrForbidden
	}
	return e, nil
}

// CreateEmployee adds a record in a department subject may create in.
func (s *Service) CreateEmployee(ctx context.Context, subject rbac.Subject, in EmployeeInput) (Employee, error) {
	in = normalise(in)
	target := Employee{DepartmentID: in.DepartmentID, UserID: in.UserID}.Target()
	if !s.authorizer.HasPermission(subject, rbac.ActionCreate, rbac.ResourceEmployee, target) {
		return Employee{}, httpx.ErrForbidden
	}
	e, err := s.repo.CreateEmployee(ctx, in)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, subject, "employee.create", "employee", e.ID, map[string]any{"employee_no": e.EmployeeNo})
	return e, nil
}

// UpdateEmployee replaces a record. Moving an employee needs update rights on
// both the current and the new placement.
func (s *Service) UpdateEmployee(ctx context.Context, subject rbac.Subject, id int64, in EmployeeInput) (Employee, error) {
	current, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	in = normalise(in)
	next := Employee{DepartmentID: in.DepartmentID, UserID: in.UserID}
	if !s.authorizer.HasPermission(subject, rbac.ActionUpdate, rbac.ResourceEmployee, current.Target()) ||
		!s.authorizer.HasPermission(subject, rbac.ActionUpdate, rbac.ResourceEmployee, next.Target()) {
		return Employee{}, httpx.ErrForbidden
	}
	e, err := s.repo.UpdateEmployee(ctx, id, in)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, subject, "employee.update", "employee", id, nil)
	return e, nil
}

// DeleteEmployee removes a record subject may delete.
func (s *Service) DeleteEmployee(ctx context.Context, subject rbac.Subject, id int64) error {
	current, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if !s.authorizer.HasPermission(subject, rbac.ActionDelete, rbac.ResourceEmployee, current.Target()) {
		return httpx.ErrForbidden
	}
	if err := s.repo.DeleteEmployee(ctx, id); err != nil {
		return err
	}
	s.record(ctx, subject, "employee.delete", "employee", id, map[string]any{"employee_no": current.EmployeeNo})
	return nil
}

// ListDepartments returns all departments.
func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

// GetDepartment returns one department.
func (s *Service) GetDepartment(ctx context.Context, id int64) (Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

// CreateDepartment adds a department.
func (s *Service) CreateDepartment(ctx context.Context, subject rbac.Subject, in DepartmentInput) (Department, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	d, err := s.repo.CreateDepartment(ctx, in)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, subject, "department.create", "department", d.ID, map[string]any{"code": d.Code})
	return d, nil
}

// UpdateDepartment replaces a department.
func (s *Service) UpdateDepartment(ctx context.Context, subject rbac.Subject, id int64, in DepartmentInput) (Department, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	d, err := s.repo.UpdateDepartment(ctx, id, in)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, subject, "department.update", "department", id, nil)
	return d, nil
}

// DeleteDepartment removes an empty department.
func (s *Service) DeleteDepartment(ctx context.Context, subject rbac.Subject, id int64) error {
	if err := s.repo.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.record(ctx, subject, "department.delete", "department", id, nil)
	return nil
}

func normalise(in EmployeeInput) EmployeeInput {
	in.EmployeeNo = strings.ToUpper(strings.TrimSpace(in.EmployeeNo))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Status == "" {
		in.Status = StatusActive
	}
	return in
}

func (s *Service) record(ctx context.Context, subject rbac.Subject, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := strconv.ParseInt(subject.UserID, 10, 64)
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: strconv.FormatInt(id, 10), Meta: meta}); err != nil {
		s.logger.Warn("employees: audit", slog.String("action", action), slog.Any("error", err))
	}
}
