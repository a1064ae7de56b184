package roles

import (
	"fmt"
	"strings"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
)

var (
	// ErrNotFound is returned when a role does not exist.
	ErrNotFound = fmt.Errorf("role %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when the role id is taken.
	ErrDuplicate = fmt.Errorf("role id %w", httpx.ErrDuplicate)
	// ErrInUse is returned when deleting a role that users still hold.
	ErrInUse = fmt.Errorf("%w: role is assigned to users", httpx.ErrConflict)
	// ErrAboveActor is returned when the role level exceeds the actor's own.
	ErrAboveActor = fmt.Errorf("%w: role level exceeds your own", httpx.ErrForbidden)
	// ErrOwnRole is returned when an actor edits or deletes the role they hold.
	ErrOwnRole = fmt.Errorf("%w: cannot change your own role", httpx.ErrForbidden)
)

// PermissionInput is one grant in a role payload.
type PermissionInput struct {
	Action   string `json:"action" validate:"required"`
	Resource string `json:"resource" validate:"required"`
	Scope    string `json:"scope" validate:"omitempty,oneof=own department all"`
}

// Input carries a role definition from the API.
type Input struct {
	ID          string            `json:"id" validate:"required,max=64"`
	Name        string            `json:"name" validate:"required,max=120"`
	Description string            `json:"description" validate:"max=500"`
	Level       int               `json:"level" validate:"required,gte=1,lte=10"`
	Permissions []PermissionInput `json:"permissions" validate:"max=200,dive"`
}

// Role converts the payload into a role definition. Actions and resources
// are normalised to lower case and must exist in the catalog.
func (in Input) Role() (rbac.Role, error) {
	role := rbac.Role{
		ID:          strings.TrimSpace(in.ID),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Level:       in.Level,
		Permissions: make([]rbac.ScopedPermission, 0, len(in.Permissions)),
	}
	for _, p := range in.Permissions {
		scope, err := rbac.ParseScope(p.Scope)
		if err != nil {
			return rbac.Role{}, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
		}
		perm := rbac.Permission{Action: strings.ToLower(p.Action), Resource: strings.ToLower(p.Resource)}
		if !rbac.Known(perm) {
			return rbac.Role{}, fmt.Errorf("%w: unknown permission %s", httpx.ErrValidation, perm)
		}
		role.Permissions = append(role.Permissions, rbac.ScopedPermission{Permission: perm, Scope: scope})
	}
	if err := rbac.ValidateRole(role); err != nil {
		return rbac.Role{}, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	return role, nil
}
