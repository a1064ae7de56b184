package leave

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

const approvalModule = "leave"

// RepositoryPort defines data access methods for leave requests.
type RepositoryPort interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Request, int, error)
	HasOverlap(ctx context.Context, userID int64, start, end time.Time) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, status Status, actorID int64, note string) (Request, error)
}

// ApprovalStore keeps the decision trail of each request.
type ApprovalStore interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Service implements the leave workflow.
type Service struct {
	repo       RepositoryPort
	approvals  ApprovalStore
	authorizer *rbac.Authorizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, approvals ApprovalStore, authorizer *rbac.Authorizer, logger *slog.Logger) *Service {
	return &Service{repo: repo, approvals: approvals, authorizer: authorizer, logger: logger, now: time.Now}
}

// Submit files a pending request for subject in subject's department.
func (s *Service) Submit(ctx context.Context, subject rbac.Subject, in SubmitInput) (Request, error) {
	userID, err := strconv.ParseInt(subject.UserID, 10, 64)
	if err != nil {
		return Request{}, httpx.ErrUnauthorized
	}
	req := Request{
		ID:              uuid.New(),
		RequesterUserID: userID,
		Type:            strings.ToUpper(in.Type),
		StartDate:       truncateDay(in.StartDate),
		EndDate:         truncateDay(in.EndDate),
		Reason:          strings.TrimSpace(in.Reason),
		Status:          StatusPending,
	}
	if subject.DepartmentID != "" {
		if dept, err := strconv.ParseInt(subject.DepartmentID, 10, 64); err == nil {
			req.DepartmentID = &dept
		}
	}
	if !s.authorizer.HasPermission(subject, rbac.ActionCreate, rbac.ResourceLeave, req.Target()) {
		return Request{}, httpx.ErrForbidden
	}
	if req.EndDate.Before(req.StartDate) {
		return Request{}, ErrInvalidPeriod
	}
	if req.Days = WorkingDays(req.StartDate, req.EndDate); req.Days == 0 {
		return Request{}, ErrInvalidPeriod
	}
	overlap, err := s.repo.HasOverlap(ctx, userID, req.StartDate, req.EndDate)
	if err != nil {
		return Request{}, err
	}
	if overlap {
		return Request{}, ErrOverlap
	}
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return Request{}, err
	}
	s.recordApproval(ctx, subject, created.ID, shared.ApprovalSubmit, created.Reason)
	return created, nil
}

// List returns the page of requests visible to subject.
func (s *Service) List(ctx context.Context, subject rbac.Subject, filter ListFilter) ([]Request, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	scope, ok := s.authorizer.Visibility(subject, rbac.ActionRead, rbac.ResourceLeave)
	if !ok {
		return nil, page, httpx.ErrForbidden
	}
	switch scope {
	case rbac.ScopeDepartment:
		dept, err := strconv.ParseInt(subject.DepartmentID, 10, 64)
		if err != nil || (filter.DepartmentID != nil && *filter.DepartmentID != dept) {
			return []Request{}, page, nil
		}
		filter.DepartmentID = &dept
	case rbac.ScopeOwn:
		userID, err := strconv.ParseInt(subject.UserID, 10, 64)
		if err != nil {
			return []Request{}, page, nil
		}
		filter.RequesterUserID = &userID
	}
	items, total, err := s.repo.List(ctx, filter, page.PerPage, page.Offset())
	if err != nil {
		return nil, page, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get returns one request subject may read.
func (s *Service) Get(ctx context.Context, subject rbac.Subject, id uuid.UUID) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !s.authorizer.HasPermission(subject, rbac.ActionRead, rbac.ResourceLeave, req.Target()) {
		return Request{}, httpx.ErrForbidden
	}
	return req, nil
}

// History returns the decision trail of a request subject may read.
func (s *Service) History(ctx context.Context, subject rbac.Subject, id uuid.UUID) ([]shared.ApprovalLog, error) {
	if _, err := s.Get(ctx, subject, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, id)
}

// Approve accepts a pending request.
func (s *Service) Approve(ctx context.Context, subject rbac.Subject, id uuid.UUID, note string) (Request, error) {
	return s.decide(ctx, subject, id, StatusApproved, shared.ApprovalApprove, note)
}

// Reject declines a pending request.
func (s *Service) Reject(ctx context.Context, subject rbac.Subject, id uuid.UUID, note string) (Request, error) {
	return s.decide(ctx, subject, id, StatusRejected, shared.ApprovalReject, note)
}

func (s *Service) decide(ctx context.Context, subject rbac.Subject, id uuid.UUID, status Status, action shared.ApprovalAction, note string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !s.authorizer.HasPermission(subject, rbac.ActionApprove, rbac.ResourceLeave, req.Target()) {
		return Request{}, httpx.ErrForbidden
	}
	actorID, err := strconv.ParseInt(subject.UserID, 10, 64)
	if err != nil {
		return Request{}, httpx.ErrUnauthorized
	}
	if actorID == req.RequesterUserID {
		return Request{}, ErrSelfApproval
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidTransition
	}
	updated, err := s.repo.Transition(ctx, id, status, actorID, strings.TrimSpace(note))
	if err != nil {
		return Request{}, err
	}
	s.recordApproval(ctx, subject, id, action, note)
	s.logger.Info("leave decided", slog.String("id", id.String()), slog.String("status", string(status)), slog.Int64("actor_id", actorID))
	return updated, nil
}

// Cancel withdraws the subject's own pending request.
func (s *Service) Cancel(ctx context.Context, subject rbac.Subject, id uuid.UUID) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if strconv.FormatInt(req.RequesterUserID, 10) != subject.UserID {
		return Request{}, httpx.ErrForbidden
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidTransition
	}
	updated, err := s.repo.Transition(ctx, id, StatusCancelled, req.RequesterUserID, "")
	if err != nil {
		return Request{}, err
	}
	s.recordApproval(ctx, subject, id, shared.ApprovalCancel, "")
	return updated, nil
}

func (s *Service) recordApproval(ctx context.Context, subject rbac.Subject, id uuid.UUID, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	actorID, _ := strconv.ParseInt(subject.UserID, 10, 64)
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   id,
		ActorID: actorID,
		RoleID:  subject.RoleID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
	if err != nil {
		s.logger.Warn("leave approval log", slog.String("id", id.String()), slog.Any("error", err))
	}
}
