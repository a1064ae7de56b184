package leave

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffora/staffora/internal/platform/httpx"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

type mockRepository struct {
	requests map[uuid.UUID]*Request
}

func (m *mockRepository) Create(ctx context.Context, req Request) (Request, error) {
	req.CreatedAt = time.Now()
	m.requests[req.ID] = &req
	return req, nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (m *mockRepository) List(ctx context.Context, f ListFilter, limit, offset int) ([]Request, int, error) {
	var out []Request
	for _, r := range m.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.DepartmentID != nil && (r.DepartmentID == nil || *r.DepartmentID != *f.DepartmentID) {
			continue
		}
		if f.RequesterUserID != nil && r.RequesterUserID != *f.RequesterUserID {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	page, _ := shared.Paginate(out, offset/limit+1, limit)
	return page, len(out), nil
}

func (m *mockRepository) HasOverlap(ctx context.Context, userID int64, start, end time.Time) (bool, error) {
	for _, r := range m.requests {
		if r.RequesterUserID != userID || (r.Status != StatusPending && r.Status != StatusApproved) {
			continue
		}
		if !r.StartDate.After(end) && !r.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) Transition(ctx context.Context, id uuid.UUID, status Status, actorID int64, note string) (Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidTransition
	}
	now := time.Now()
	req.Status, req.DecidedBy, req.DecidedAt, req.DecisionNote = status, &actorID, &now, note
	return *req, nil
}

type approvalSpy struct{ logs []shared.ApprovalLog }

func (a *approvalSpy) Record(ctx context.Context, log shared.ApprovalLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.logs = append(a.logs, log)
	return nil
}

func (a *approvalSpy) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

var (
	ayu      = rbac.Subject{UserID: "11", RoleID: rbac.RoleEmployee, DepartmentID: "7"}
	citra    = rbac.Subject{UserID: "13", RoleID: rbac.RoleEmployee, DepartmentID: "8"}
	manager7 = rbac.Subject{UserID: "5", RoleID: rbac.RoleDepartmentManager, DepartmentID: "7"}
	manager8 = rbac.Subject{UserID: "6", RoleID: rbac.RoleDepartmentManager, DepartmentID: "8"}
	hrAdmin  = rbac.Subject{UserID: "2", RoleID: rbac.RoleHRAdministrator}
	viewer   = rbac.Subject{UserID: "20", RoleID: rbac.RoleViewer}
)

// Monday 2026-03-02 through Friday 2026-03-06.
var (
	monday = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	friday = time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
)

func newTestService() (*Service, *mockRepository, *approvalSpy) {
	repo := &mockRepository{requests: make(map[uuid.UUID]*Request)}
	spy := &approvalSpy{}
	authorizer := rbac.NewAuthorizer(rbac.NewStore(rbac.BuiltinRoles()))
	return NewService(repo, spy, authorizer, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, spy
}

func TestWorkingDays(t *testing.T) {
	assert.Equal(t, 5, WorkingDays(monday, friday))
	assert.Equal(t, 5, WorkingDays(monday, friday.AddDate(0, 0, 2)), "weekend adds nothing")
	assert.Equal(t, 0, WorkingDays(friday.AddDate(0, 0, 1), friday.AddDate(0, 0, 2)))
	assert.Equal(t, 1, WorkingDays(monday, monday))
}

func TestSubmit(t *testing.T) {
	svc, _, spy := newTestService()
	ctx := context.Background()

	req, err := svc.Submit(ctx, ayu, SubmitInput{Type: "annual", StartDate: monday, EndDate: friday, Reason: " family trip "})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 5, req.Days)
	assert.Equal(t, TypeAnnual, req.Type)
	assert.Equal(t, int64(7), *req.DepartmentID)
	assert.Equal(t, "family trip", req.Reason)
	require.Len(t, spy.logs, 1)
	assert.Equal(t, shared.ApprovalSubmit, spy.logs[0].Action)

	_, err = svc.Submit(ctx, ayu, SubmitInput{Type: TypeSick, StartDate: friday, EndDate: friday})
	assert.ErrorIs(t, err, ErrOverlap)

	_, err = svc.Submit(ctx, ayu, SubmitInput{Type: TypeSick, StartDate: friday.AddDate(0, 0, 1), EndDate: friday.AddDate(0, 0, 2)})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.Submit(ctx, ayu, SubmitInput{Type: TypeSick, StartDate: friday.AddDate(0, 0, 10), EndDate: friday.AddDate(0, 0, 3)})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Submit(ctx, viewer, SubmitInput{Type: TypeSick, StartDate: monday, EndDate: monday})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestApprovalFlow(t *testing.T) {
	svc, _, spy := newTestService()
	ctx := context.Background()

	req, err := svc.Submit(ctx, ayu, SubmitInput{Type: TypeAnnual, StartDate: monday, EndDate: friday})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, manager8, req.ID, "")
	assert.ErrorIs(t, err, httpx.ErrForbidden, "other department's manager")

	_, err = svc.Approve(ctx, ayu, req.ID, "")
	assert.ErrorIs(t, err, httpx.ErrForbidden, "employees cannot approve")

	approved, err := svc.Approve(ctx, manager7, req.ID, "enjoy")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, int64(5), *approved.DecidedBy)

	_, err = svc.Reject(ctx, hrAdmin, req.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Cancel(ctx, ayu, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	history, err := svc.History(ctx, ayu, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, shared.ApprovalApprove, history[1].Action)
	assert.Equal(t, rbac.RoleDepartmentManager, history[1].RoleID)
	assert.Len(t, spy.logs, 2)
}

func TestNoSelfApproval(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Submit(ctx, manager7, SubmitInput{Type: TypeAnnual, StartDate: monday, EndDate: monday})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, manager7, req.ID, "")
	assert.ErrorIs(t, err, ErrSelfApproval)

	rejected, err := svc.Reject(ctx, hrAdmin, req.ID, "coverage")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Submit(ctx, ayu, SubmitInput{Type: TypeAnnual, StartDate: monday, EndDate: friday})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, manager7, req.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	cancelled, err := svc.Cancel(ctx, ayu, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Submit(ctx, ayu, SubmitInput{Type: TypeAnnual, StartDate: monday, EndDate: friday})
	assert.NoError(t, err, "cancelled requests free the period")
}

func TestListVisibility(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Submit(ctx, ayu, SubmitInput{Type: TypeAnnual, StartDate: monday, EndDate: friday})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, citra, SubmitInput{Type: TypeSick, StartDate: monday, EndDate: monday})
	require.NoError(t, err)

	items, page, err := svc.List(ctx, hrAdmin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.Total)

	items, _, err = svc.List(ctx, manager8, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(13), items[0].RequesterUserID)

	items, _, err = svc.List(ctx, ayu, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(11), items[0].RequesterUserID)

	_, _, err = svc.List(ctx, viewer, ListFilter{})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestHandlerFlow(t *testing.T) {
	svc, _, _ := newTestService()
	r := chi.NewRouter()
	r.Route("/leave", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)

	do := func(method, path, body string, sub *rbac.Subject) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if sub != nil {
			req = req.WithContext(rbac.ContextWithSubject(req.Context(), *sub))
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/leave", "", nil).Code)

	rr := do(http.MethodPost, "/leave", `{"type":"ANNUAL","start_date":"2026-03-02T00:00:00Z","end_date":"2026-03-03T00:00:00Z"}`, &ayu)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created Request
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/leave", `{"type":"HOLIDAY","start_date":"2026-03-02T00:00:00Z","end_date":"2026-03-03T00:00:00Z"}`, &ayu).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/leave/not-a-uuid", "", &ayu).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/leave/"+created.ID.String(), "", &citra).Code)

	rr = do(http.MethodPost, "/leave/"+created.ID.String()+"/approve", `{"note":"ok"}`, &manager7)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/leave/"+created.ID.String()+"/reject", "", &hrAdmin).Code)

	rr = do(http.MethodGet, "/leave/"+created.ID.String()+"/history", "", &ayu)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		History []shared.ApprovalLog `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.History, 2)
}
