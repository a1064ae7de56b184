package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, in CreateInput, passwordHash string) (User, error)
	UpdateRole(ctx context.Context, id int64, roleID string) error
	UpdateDepartment(ctx context.Context, id int64, departmentID *int64) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service handles user business logic.
type Service struct {
	repo       RepositoryPort
	authorizer *rbac.Authorizer
	roles      rbac.RoleResolver
	audit      shared.AuditRecorder
	logger     *slog.Logger
	hashCost   int
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, authorizer *rbac.Authorizer, roles rbac.RoleResolver, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authorizer: authorizer, roles: roles, audit: audit, logger: logger, hashCost: bcrypt.DefaultCost}
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	users, total, err := s.repo.ListUsers(ctx, filter, page.PerPage, page.Offset())
	if err != nil {
		return nil, page, err
	}
	return users, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Subject builds the authorization principal of an active user.
func (s *Service) Subject(ctx context.Context, userID string) (rbac.Subject, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return rbac.Subject{}, ErrNotFound
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return rbac.Subject{}, err
	}
	if !user.IsActive {
		return rbac.Subject{}, ErrNotFound
	}
	subject := rbac.Subject{UserID: userID, RoleID: user.RoleID}
	if user.DepartmentID != nil {
		subject.DepartmentID = strconv.FormatInt(*user.DepartmentID, 10)
	}
	return subject, nil
}

// CreateUser registers a new account on behalf of actor.
func (s *Service) CreateUser(ctx context.Context, actor rbac.Subject, in CreateInput) (User, error) {
	if err := s.checkGrantable(actor, in.RoleID); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, in, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.create", user.ID, map[string]any{"role_id": user.RoleID})
	return user, nil
}

// AssignRole changes the role of userID. The actor may only grant roles at or
// below their own level, to users whose current role is also at or below it.
func (s *Service) AssignRole(ctx context.Context, actor rbac.Subject, userID int64, roleID string) error {
	if err := s.checkGrantable(actor, roleID); err != nil {
		return err
	}
	current, err := s.manageable(ctx, actor, userID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actor, "user.assign_role", userID, map[string]any{"from": current.RoleID, "to": roleID})
	return nil
}

// SetDepartment moves userID into departmentID; nil clears it.
func (s *Service) SetDepartment(ctx context.Context, actor rbac.Subject, userID int64, departmentID *int64) error {
	if _, err := s.manageable(ctx, actor, userID); err != nil {
		return err
	}
	if err := s.repo.UpdateDepartment(ctx, userID, departmentID); err != nil {
		return err
	}
	s.record(ctx, actor, "user.set_department", userID, map[string]any{"department_id": departmentID})
	return nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, actor rbac.Subject, userID int64, active bool) error {
	if _, err := s.manageable(ctx, actor, userID); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	s.record(ctx, actor, "user.set_active", userID, map[string]any{"active": active})
	return nil
}

// manageable loads userID and rejects the actor's own account and accounts
// whose current role is above the actor's level.
func (s *Service) manageable(ctx context.Context, actor rbac.Subject, userID int64) (User, error) {
	if strconv.FormatInt(userID, 10) == actor.UserID {
		return User{}, ErrOwnAccount
	}
	current, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if role, ok := s.roles.GetRole(current.RoleID); ok && !s.authorizer.HasLevel(actor, role.Level) {
		return User{}, ErrRoleAboveActor
	}
	return current, nil
}

func (s *Service) checkGrantable(actor rbac.Subject, roleID string) error {
	role, ok := s.roles.GetRole(roleID)
	if !ok {
		return ErrUnknownRole
	}
	if !s.authorizer.HasLevel(actor, role.Level) {
		return ErrRoleAboveActor
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor rbac.Subject, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := strconv.ParseInt(actor.UserID, 10, 64)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("users: audit", slog.String("action", action), slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
