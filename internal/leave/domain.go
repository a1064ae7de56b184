package leave

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
)

var (
	// ErrNotFound is returned when a leave request does not exist.
	ErrNotFound = fmt.Errorf("leave request %w", httpx.ErrNotFound)
	// ErrInvalidTransition is returned when the request is no longer pending.
	ErrInvalidTransition = fmt.Errorf("%w: leave request is not pending", httpx.ErrConflict)
	// ErrOverlap is returned when the period overlaps an open request.
	ErrOverlap = fmt.Errorf("%w: leave period overlaps an existing request", httpx.ErrConflict)
	// ErrSelfApproval is returned when a reviewer decides their own request.
	ErrSelfApproval = fmt.Errorf("%w: cannot decide your own leave request", httpx.ErrForbidden)
	// ErrInvalidPeriod is returned for an empty or reversed period.
	ErrInvalidPeriod = fmt.Errorf("%w: leave period must contain a working day", httpx.ErrValidation)
)

// Status of a leave request.
type Status string

// Leave request states. Only PENDING requests can move.
const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Leave types.
const (
	TypeAnnual = "ANNUAL"
	TypeSick   = "SICK"
	TypeUnpaid = "UNPAID"
	TypeOther  = "OTHER"
)

// Request is a leave request.
type Request struct {
	ID              uuid.UUID  `json:"id"`
	RequesterUserID int64      `json:"requester_user_id"`
	DepartmentID    *int64     `json:"department_id,omitempty"`
	Type            string     `json:"type"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	Days            int        `json:"days"`
	Reason          string     `json:"reason,omitempty"`
	Status          Status     `json:"status"`
	DecidedBy       *int64     `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	DecisionNote    string     `json:"decision_note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Target describes the request to the authorizer.
func (r Request) Target() *rbac.Target {
	t := &rbac.Target{OwnerUserID: strconv.FormatInt(r.RequesterUserID, 10)}
	if r.DepartmentID != nil {
		t.DepartmentID = strconv.FormatInt(*r.DepartmentID, 10)
	}
	return t
}

// SubmitInput carries a new leave request.
type SubmitInput struct {
	Type      string    `json:"type" validate:"required,oneof=ANNUAL SICK UNPAID OTHER"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Reason    string    `json:"reason" validate:"max=500"`
}

// DecisionInput carries an approve or reject note.
type DecisionInput struct {
	Note string `json:"note" validate:"max=500"`
}

// ListFilter narrows listings. DepartmentID and RequesterUserID are forced by
// the service for department and own scoped readers.
type ListFilter struct {
	Status          Status
	DepartmentID    *int64
	RequesterUserID *int64
	Page            int
	PerPage         int
}

// WorkingDays counts Monday to Friday days in [start, end].
func WorkingDays(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
