package users

import (
	"fmt"
	"time"

	"github.com/staffora/staffora/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = fmt.Errorf("email %w", httpx.ErrDuplicate)
	// ErrUnknownRole is returned when assigning a role that is not loaded.
	ErrUnknownRole = fmt.Errorf("%w: unknown role", httpx.ErrValidation)
	// ErrUnknownDepartment is returned when the department does not exist.
	ErrUnknownDepartment = fmt.Errorf("%w: unknown department", httpx.ErrValidation)
	// ErrRoleAboveActor is returned when an actor grants a role above their own level.
	ErrRoleAboveActor = fmt.Errorf("%w: role level exceeds your own", httpx.ErrForbidden)
	// ErrOwnAccount is returned when an actor changes their own role, department or status.
	ErrOwnAccount = fmt.Errorf("%w: cannot change your own account", httpx.ErrForbidden)
)

// User represents a user account for management.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	RoleID       string    `json:"role_id"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	RoleID       string
	DepartmentID *int64
	Page         int
	PerPage      int
}

// CreateInput carries a new account.
type CreateInput struct {
	Email        string `json:"email" validate:"required,email"`
	Name         string `json:"name" validate:"required,max=120"`
	Phone        string `json:"phone" validate:"omitempty,e164"`
	Password     string `json:"password" validate:"required,min=8"`
	RoleID       string `json:"role_id" validate:"required"`
	DepartmentID *int64 `json:"department_id" validate:"omitempty,gt=0"`
}
