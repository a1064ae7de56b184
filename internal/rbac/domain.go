package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Scope limits which records a granted permission reaches.
type Scope string

const (
	// ScopeOwn grants access to records owned by the subject.
	ScopeOwn Scope = "own"
	// ScopeDepartment grants access to records in the subject's department.
	ScopeDepartment Scope = "department"
	// ScopeAll grants access to every record.
	ScopeAll Scope = "all"
)

// ErrInvalidScope is returned when a scope value is not recognised.
var ErrInvalidScope = errors.New("rbac: invalid scope")

// ParseScope normalises raw input into a Scope. Empty input yields ScopeAll.
func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return ScopeAll, nil
	case ScopeOwn, ScopeDepartment, ScopeAll:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, raw)
	}
}

// Permission identifies an (action, resource) pair.
type Permission struct {
	Action   string `json:"action" yaml:"action"`
	Resource string `json:"resource" yaml:"resource"`
}

// String renders the permission as resource.action.
func (p Permission) String() string {
	return p.Resource + "." + p.Action
}

// ScopedPermission is a permission granted to a role with a reach.
type ScopedPermission struct {
	Permission `yaml:",inline"`
	Scope      Scope `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Role bundles an ordered permission list with a coarse numeric level.
type Role struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Level       int                `json:"level"`
	Permissions []ScopedPermission `json:"permissions"`
}

// Subject is the runtime identity of the caller.
type Subject struct {
	UserID       string `json:"user_id"`
	RoleID       string `json:"role_id"`
	DepartmentID string `json:"department_id,omitempty"`
}

// Target carries attributes of the record being accessed. Empty fields are absent.
type Target struct {
	DepartmentID string `json:"department_id,omitempty"`
	OwnerUserID  string `json:"owner_user_id,omitempty"`
}
