package roles

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	CreateRole(ctx context.Context, role rbac.Role) error
	UpdateRole(ctx context.Context, role rbac.Role) error
	DeleteRole(ctx context.Context, id string) error
}

// Snapshot is the live role set that writes must refresh.
type Snapshot interface {
	GetRole(id string) (rbac.Role, error)
	ListRoles() []rbac.Role
	Invalidate(ctx context.Context) error
}

// Service handles role business logic.
type Service struct {
	repo       RepositoryPort
	snapshot   Snapshot
	authorizer *rbac.Authorizer
	audit      shared.AuditRecorder
	logger     *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, snapshot Snapshot, authorizer *rbac.Authorizer, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, snapshot: snapshot, authorizer: authorizer, audit: audit, logger: logger}
}

// ListRoles returns the roles currently enforced.
func (s *Service) ListRoles() []rbac.Role {
	return s.snapshot.ListRoles()
}

// GetRole returns one enforced role.
func (s *Service) GetRole(id string) (rbac.Role, error) {
	role, err := s.snapshot.GetRole(id)
	if err != nil {
		return rbac.Role{}, ErrNotFound
	}
	return role, nil
}

// CreateRole persists a new role and reloads the snapshot.
func (s *Service) CreateRole(ctx context.Context, actor rbac.Subject, in Input) (rbac.Role, error) {
	role, err := in.Role()
	if err != nil {
		return rbac.Role{}, err
	}
	if !s.authorizer.HasLevel(actor, role.Level) {
		return rbac.Role{}, ErrAboveActor
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return rbac.Role{}, err
	}
	s.afterWrite(ctx, actor, "role.create", role.ID, map[string]any{"level": role.Level, "permissions": len(role.Permissions)})
	return role, nil
}

// UpdateRole replaces the definition of id.
func (s *Service) UpdateRole(ctx context.Context, actor rbac.Subject, id string, in Input) (rbac.Role, error) {
	in.ID = id
	role, err := in.Role()
	if err != nil {
		return rbac.Role{}, err
	}
	if err := s.checkEditable(actor, role.ID); err != nil {
		return rbac.Role{}, err
	}
	if !s.authorizer.HasLevel(actor, role.Level) {
		return rbac.Role{}, ErrAboveActor
	}
	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return rbac.Role{}, err
	}
	s.afterWrite(ctx, actor, "role.update", role.ID, map[string]any{"level": role.Level, "permissions": len(role.Permissions)})
	return role, nil
}

// DeleteRole removes id.
func (s *Service) DeleteRole(ctx context.Context, actor rbac.Subject, id string) error {
	if err := s.checkEditable(actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, actor, "role.delete", id, nil)
	return nil
}

// checkEditable rejects edits to the actor's own role and to roles above the
// actor's level. Roles missing from the snapshot fall through to the
// repository, which reports ErrNotFound.
func (s *Service) checkEditable(actor rbac.Subject, id string) error {
	current, err := s.snapshot.GetRole(id)
	if err != nil {
		return nil
	}
	if current.ID == actor.RoleID {
		return ErrOwnRole
	}
	if !s.authorizer.HasLevel(actor, current.Level) {
		return ErrAboveActor
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, actor rbac.Subject, action, roleID string, meta map[string]any) {
	if err := s.snapshot.Invalidate(ctx); err != nil {
		s.logger.Error("roles: reload after write", slog.String("role_id", roleID), slog.Any("error", err))
	}
	if s.audit == nil {
		return
	}
	actorID, _ := strconv.ParseInt(actor.UserID, 10, 64)
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: roleID, Meta: meta}); err != nil {
		s.logger.Warn("roles: audit", slog.Any("error", err))
	}
}
