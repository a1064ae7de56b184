package employees

import (
	"fmt"
	"strconv"
	"time"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
)

var (
	// ErrEmployeeNotFound is returned when an employee does not exist.
	ErrEmployeeNotFound = fmt.Errorf("employee %w", httpx.ErrNotFound)
	// ErrDepartmentNotFound is returned when a department does not exist.
	ErrDepartmentNotFound = fmt.Errorf("department %w", httpx.ErrNotFound)
	// ErrDuplicate is returned for a taken employee number or department code.
	ErrDuplicate = fmt.Errorf("employee or department %w", httpx.ErrDuplicate)
	// ErrDepartmentInUse is returned when deleting a department that still has staff.
	ErrDepartmentInUse = fmt.Errorf("%w: department still has employees", httpx.ErrConflict)
)

// Employee status values.
const (
	StatusActive     = "ACTIVE"
	StatusOnLeave    = "ON_LEAVE"
	StatusTerminated = "TERMINATED"
)

// Department groups employees under a manager.
type Department struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	ManagerUserID *int64    `json:"manager_user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Employee is a personnel record. UserID links the login account, if any.
type Employee struct {
	ID           int64     `json:"id"`
	EmployeeNo   string    `json:"employee_no"`
	UserID       *int64    `json:"user_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Position     string    `json:"position"`
	HireDate     time.Time `json:"hire_date"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Target describes the record to the authorizer.
func (e Employee) Target() *rbac.Target {
	return &rbac.Target{DepartmentID: idString(e.DepartmentID), OwnerUserID: idString(e.UserID)}
}

func idString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// ListFilter narrows employee listings. Scope fields are filled by the
// service from the caller's visibility and are not user input.
type ListFilter struct {
	DepartmentID *int64
	Status       string
	Search       string
	OwnerUserID  *int64
	Page         int
	PerPage      int
}

// EmployeeInput carries create and update payloads.
type EmployeeInput struct {
	EmployeeNo   string    `json:"employee_no" validate:"required,max=32"`
	UserID       *int64    `json:"user_id" validate:"omitempty,gt=0"`
	DepartmentID *int64    `json:"department_id" validate:"omitempty,gt=0"`
	FullName     string    `json:"full_name" validate:"required,max=160"`
	Email        string    `json:"email" validate:"required,email"`
	Position     string    `json:"position" validate:"max=120"`
	HireDate     time.Time `json:"hire_date" validate:"required"`
	Status       string    `json:"status" validate:"omitempty,oneof=ACTIVE ON_LEAVE TERMINATED"`
}

// DepartmentInput carries department payloads.
type DepartmentInput struct {
	Code          string `json:"code" validate:"required,max=16"`
	Name          string `json:"name" validate:"required,max=120"`
	ManagerUserID *int64 `json:"manager_user_id" validate:"omitempty,gt=0"`
}
