package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffora/staffora/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const employeeColumns = `id, employee_no, user_id, department_id, full_name, email, position, hire_date, status, created_at, updated_at`

// ListEmployees returns one page of employees plus the total count.
func (r *Repository) ListEmployees(ctx context.Context, filter ListFilter, limit, offset int) ([]Employee, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.DepartmentID != nil {
		add("department_id = $%d", *filter.DepartmentID)
	}
	if filter.OwnerUserID != nil {
		add("user_id = $%d", *filter.OwnerUserID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Search != "" {
		add("(full_name ILIKE $%[1]d OR employee_no ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM employees%s ORDER BY full_name, id LIMIT $%d OFFSET $%d`,
		employeeColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// GetEmployee loads one employee.
func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	e, err := scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, err
}

// CreateEmployee inserts an employee.
func (r *Repository) CreateEmployee(ctx context.Context, in EmployeeInput) (Employee, error) {
	e, err := scanEmployee(r.pool.QueryRow(ctx, `INSERT INTO employees (employee_no, user_id, department_id, full_name, email, position, hire_date, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+employeeColumns,
		in.EmployeeNo, in.UserID, in.DepartmentID, in.FullName, in.Email, in.Position, in.HireDate, in.Status))
	return e, mapWriteErr(err)
}

// UpdateEmployee replaces an employee's attributes.
func (r *Repository) UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (Employee, error) {
	e, err := scanEmployee(r.pool.QueryRow(ctx, `UPDATE employees SET employee_no = $2, user_id = $3, department_id = $4, full_name = $5,
email = $6, position = $7, hire_date = $8, status = $9, updated_at = NOW() WHERE id = $1 RETURNING `+employeeColumns,
		id, in.EmployeeNo, in.UserID, in.DepartmentID, in.FullName, in.Email, in.Position, in.HireDate, in.Status))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, mapWriteErr(err)
}

// DeleteEmployee removes an employee.
func (r *Repository) DeleteEmployee(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

const departmentColumns = `id, code, name, manager_user_id, created_at, updated_at`

// ListDepartments returns every department ordered by name.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDepartment loads one department.
func (r *Repository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrDepartmentNotFound
	}
	return d, err
}

// CreateDepartment inserts a department.
func (r *Repository) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `INSERT INTO departments (code, name, manager_user_id) VALUES ($1, $2, $3) RETURNING `+departmentColumns,
		in.Code, in.Name, in.ManagerUserID))
	return d, mapWriteErr(err)
}

// UpdateDepartment replaces a department's attributes.
func (r *Repository) UpdateDepartment(ctx context.Context, id int64, in DepartmentInput) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `UPDATE departments SET code = $2, name = $3, manager_user_id = $4, updated_at = NOW()
WHERE id = $1 RETURNING `+departmentColumns, id, in.Code, in.Name, in.ManagerUserID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrDepartmentNotFound
	}
	return d, mapWriteErr(err)
}

// DeleteDepartment removes an empty department.
func (r *Repository) DeleteDepartment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrDepartmentInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return ErrDepartmentNotFound
	}
	return err
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var (
		e            Employee
		userID, dept pgtype.Int8
		position     pgtype.Text
	)
	if err := row.Scan(&e.ID, &e.EmployeeNo, &userID, &dept, &e.FullName, &e.Email, &position, &e.HireDate, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Employee{}, err
	}
	e.UserID = int8Ptr(userID)
	e.DepartmentID = int8Ptr(dept)
	e.Position = position.String
	return e, nil
}

func scanDepartment(row pgx.Row) (Department, error) {
	var (
		d       Department
		manager pgtype.Int8
	)
	if err := row.Scan(&d.ID, &d.Code, &d.Name, &manager, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Department{}, err
	}
	d.ManagerUserID = int8Ptr(manager)
	return d, nil
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
