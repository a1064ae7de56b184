package users

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

const userColumns = `id, email, name, phone, role_id, department_id, is_active, created_at, updated_at`

// ListUsers returns one page of users plus the total count.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter, limit, offset int) ([]User, int, error) {
	where, args := filterClause(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY id LIMIT $%d OFFSET $%d`, userColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func filterClause(filter ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.RoleID != "" {
		args = append(args, filter.RoleID)
		conds = append(conds, fmt.Sprintf("role_id = $%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		conds = append(conds, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetUser loads one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

// CreateUser inserts a user with an already hashed password.
func (r *Repository) CreateUser(ctx context.Context, in CreateInput, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, phone, password_hash, role_id, department_id, is_active)
VALUES (LOWER($1), $2, $3, $4, $5, $6, TRUE) RETURNING `+userColumns,
		strings.TrimSpace(in.Email), in.Name, pgtype.Text{String: in.Phone, Valid: in.Phone != ""}, passwordHash, in.RoleID, in.DepartmentID)
	user, err := scanUser(row)
	switch {
	case db.IsUniqueViolation(err):
		return User{}, ErrEmailTaken
	case db.IsForeignKeyViolation(err):
		return User{}, ErrUnknownDepartment
	}
	return user, err
}

// UpdateRole changes the role of a user.
func (r *Repository) UpdateRole(ctx context.Context, id int64, roleID string) error {
	return r.exec(ctx, ErrUnknownRole, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, id, roleID)
}

// UpdateDepartment moves a user; nil clears the department.
func (r *Repository) UpdateDepartment(ctx context.Context, id int64, departmentID *int64) error {
	return r.exec(ctx, ErrUnknownDepartment, `UPDATE users SET department_id = $2, updated_at = NOW() WHERE id = $1`, id, departmentID)
}

// SetActive toggles the account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, nil, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *Repository) exec(ctx context.Context, fkErr error, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		if fkErr != nil && db.IsForeignKeyViolation(err) {
			return fkErr
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user  User
		phone pgtype.Text
		dept  pgtype.Int8
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &phone, &user.RoleID, &dept, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Phone = phone.String
	if dept.Valid {
		id := dept.Int64
		user.DepartmentID = &id
	}
	return user, nil
}
