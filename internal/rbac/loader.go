package rbac

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRole indicates a role definition that cannot be loaded.
var ErrInvalidRole = errors.New("rbac: invalid role definition")

type roleFile struct {
	Roles []roleDocument `yaml:"roles"`
}

type roleDocument struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Level       int                  `yaml:"level"`
	Permissions []permissionDocument `yaml:"permissions"`
}

type permissionDocument struct {
	Action   string `yaml:"action"`
	Resource string `yaml:"resource"`
	Scope    string `yaml:"scope"`
}

// LoadRolesFile reads role definitions from a YAML file.
func LoadRolesFile(path string) ([]Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: read roles file: %w", err)
	}
	return ParseRoles(data)
}

// ParseRoles decodes and validates YAML role definitions:
//
//	roles:
//	  - id: employee
//	    name: Employee
//	    level: 2
//	    permissions:
//	      - {action: read, resource: employee, scope: own}
func ParseRoles(data []byte) ([]Role, error) {
	var doc roleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rbac: decode roles: %w", err)
	}
	roles := make([]Role, 0, len(doc.Roles))
	for _, rd := range doc.Roles {
		role := Role{
			ID:          strings.TrimSpace(rd.ID),
			Name:        strings.TrimSpace(rd.Name),
			Description: strings.TrimSpace(rd.Description),
			Level:       rd.Level,
			Permissions: make([]ScopedPermission, 0, len(rd.Permissions)),
		}
		for _, pd := range rd.Permissions {
			scope, err := ParseScope(pd.Scope)
			if err != nil {
				return nil, fmt.Errorf("%w: role %q: %v", ErrInvalidRole, role.ID, err)
			}
			role.Permissions = append(role.Permissions, ScopedPermission{
				Permission: Permission{
					Action:   strings.ToLower(strings.TrimSpace(pd.Action)),
					Resource: strings.ToLower(strings.TrimSpace(pd.Resource)),
				},
				Scope: scope,
			})
		}
		roles = append(roles, role)
	}
	if err := ValidateRoles(roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// ValidateRoles checks a role set for structural problems: missing IDs,
// duplicate IDs, non-positive levels, empty permission parts and unknown scopes.
// Permissions outside the catalog are allowed so deployments can extend it.
func ValidateRoles(roles []Role) error {
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if err := ValidateRole(role); err != nil {
			return err
		}
		if _, dup := seen[role.ID]; dup {
			return fmt.Errorf("%w: duplicate role id %q", ErrInvalidRole, role.ID)
		}
		seen[role.ID] = struct{}{}
	}
	return nil
}

// ValidateRole checks a single role definition.
func ValidateRole(role Role) error {
	if role.ID == "" {
		return fmt.Errorf("%w: role id required", ErrInvalidRole)
	}
	if role.Level <= 0 {
		return fmt.Errorf("%w: role %q: level must be positive", ErrInvalidRole, role.ID)
	}
	for i, p := range role.Permissions {
		if p.Action == "" || p.Resource == "" {
			return fmt.Errorf("%w: role %q: permission %d needs action and resource", ErrInvalidRole, role.ID, i)
		}
		switch p.Scope {
		case "", ScopeOwn, ScopeDepartment, ScopeAll:
		default:
			return fmt.Errorf("%w: role %q: %w: %q", ErrInvalidRole, role.ID, ErrInvalidScope, p.Scope)
		}
	}
	return nil
}
