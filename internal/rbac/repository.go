package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads persisted role definitions.
type Repository interface {
	ListRoleDefinitions(ctx context.Context) ([]Role, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const listRoleDefinitions = `
SELECT r.id, r.name, r.description, r.level, rp.action, rp.resource, rp.scope
FROM roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id
ORDER BY r.id, rp.position`

// ListRoleDefinitions returns every role with its ordered permission list.
func (r *PGRepository) ListRoleDefinitions(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, listRoleDefinitions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[string]int)
	for rows.Next() {
		var (
			role                    Role
			action, resource, scope pgtype.Text
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Level, &action, &resource, &scope); err != nil {
			return nil, err
		}
		pos, ok := index[role.ID]
		if !ok {
			pos = len(roles)
			index[role.ID] = pos
			roles = append(roles, role)
		}
		if !action.Valid || !resource.Valid {
			continue
		}
		roles[pos].Permissions = append(roles[pos].Permissions, ScopedPermission{
			Permission: Permission{Action: action.String, Resource: resource.String},
			Scope:      Scope(scope.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

var _ Repository = (*PGRepository)(nil)
