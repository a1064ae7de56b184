package roles

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffora/staffora/internal/platform/db"
	"github.com/staffora/staffora/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRole inserts a role and its permissions in one transaction.
func (r *Repository) CreateRole(ctx context.Context, role rbac.Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO roles (id, name, description, level) VALUES ($1, $2, $3, $4)`,
			role.ID, role.Name, role.Description, role.Level)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return insertPermissions(ctx, tx, role)
	})
}

// UpdateRole replaces a role's attributes and permission list.
func (r *Repository) UpdateRole(ctx context.Context, role rbac.Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE roles SET name = $2, description = $3, level = $4, updated_at = NOW() WHERE id = $1`,
			role.ID, role.Name, role.Description, role.Level)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
			return err
		}
		return insertPermissions(ctx, tx, role)
	})
}

// DeleteRole removes a role that no user holds.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrInUse
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func insertPermissions(ctx context.Context, tx pgx.Tx, role rbac.Role) error {
	if len(role.Permissions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, p := range role.Permissions {
		batch.Queue(`INSERT INTO role_permissions (role_id, position, action, resource, scope) VALUES ($1, $2, $3, $4, $5)`,
			role.ID, i, p.Action, p.Resource, string(p.Scope))
	}
	return tx.SendBatch(ctx, batch).Close()
}
