package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, requester_user_id, department_id, leave_type, start_date, end_date, days, reason, status,
decided_by, decided_at, decision_note, created_at, updated_at`

// Create inserts a pending request.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `INSERT INTO leave_requests (id, requester_user_id, department_id, leave_type, start_date, end_date, days, reason, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+requestColumns,
		req.ID, req.RequesterUserID, req.DepartmentID, req.Type, req.StartDate, req.EndDate, req.Days, req.Reason, string(req.Status)))
}

// Get loads one request.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return req, err
}

// List returns one page of requests plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Request, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.DepartmentID != nil {
		add("department_id = $%d", *filter.DepartmentID)
	}
	if filter.RequesterUserID != nil {
		add("requester_user_id = $%d", *filter.RequesterUserID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leave_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM leave_requests%s ORDER BY start_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

// HasOverlap reports whether userID has a pending or approved request
// intersecting [start, end].
func (r *Repository) HasOverlap(ctx context.Context, userID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leave_requests WHERE requester_user_id = $1
AND status IN ('PENDING', 'APPROVED') AND start_date <= $3 AND end_date >= $2)`, userID, start, end).Scan(&exists)
	return exists, err
}

// Transition moves a pending request to status. It returns
// ErrInvalidTransition when the request is no longer pending.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, status Status, actorID int64, note string) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `UPDATE leave_requests SET status = $2, decided_by = $3, decided_at = NOW(),
decision_note = $4, updated_at = NOW() WHERE id = $1 AND status = 'PENDING' RETURNING `+requestColumns,
		id, string(status), actorID, note))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return Request{}, getErr
		}
		return Request{}, ErrInvalidTransition
	}
	return req, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req       Request
		dept      pgtype.Int8
		decidedBy pgtype.Int8
		decidedAt pgtype.Timestamptz
		reason    pgtype.Text
		note      pgtype.Text
		status    string
	)
	if err := row.Scan(&req.ID, &req.RequesterUserID, &dept, &req.Type, &req.StartDate, &req.EndDate, &req.Days, &reason, &status,
		&decidedBy, &decidedAt, &note, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	req.Reason = reason.String
	req.DecisionNote = note.String
	if dept.Valid {
		v := dept.Int64
		req.DepartmentID = &v
	}
	if decidedBy.Valid {
		v := decidedBy.Int64
		req.DecidedBy = &v
	}
	if decidedAt.Valid {
		v := decidedAt.Time
		req.DecidedAt = &v
	}
	return req, nil
}
