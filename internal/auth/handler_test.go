package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

type stubLookup map[string]rbac.Subject

func (s stubLookup) Subject(ctx context.Context, userID string) (rbac.Subject, error) {
	subject, ok := s[userID]
	if !ok {
		return rbac.Subject{}, shared.ErrNotFound
	}
	return subject, nil
}

type harness struct {
	fixture
	router   http.Handler
	sessions *shared.SessionManager
}

func newHarness(t *testing.T, lookup SubjectLookup) harness {
	t.Helper()
	f := newFixture(t)
	client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "staffora_session", time.Hour, false)
	authorizer := rbac.NewAuthorizer(rbac.NewStore(rbac.BuiltinRoles()))
	h := NewHandler(quietLogger(), f.svc, authorizer, sessions, shared.NewCSRFManager("csrf"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			require.NoError(t, err)
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
			require.NoError(t, sessions.Commit(r.Context(), w, sess))
		})
	})
	r.Use(Middleware(f.svc, lookup, quietLogger()))
	r.Route("/auth", h.MountRoutes)
	return harness{fixture: f, router: r, sessions: sessions}
}

func (h harness) do(method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodPost, "/auth/login", `{"email":"ayu@staffora.test","password":"correct-horse"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token.AccessToken)
	assert.NotEmpty(t, resp.CSRFToken)
	assert.Equal(t, rbac.RoleEmployee, resp.User.RoleID)
	assert.Len(t, h.repo.sessions, 1)

	rr = h.do(http.MethodGet, "/auth/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+resp.Token.AccessToken)
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "1", me.UserID)
	assert.Equal(t, "7", me.DepartmentID)
	assert.Equal(t, 2, me.Level)
	assert.NotEmpty(t, me.Permissions)
}

func TestLoginRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodPost, "/auth/login", `{"email":"ayu@staffora.test","password":"wrong-horse"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"correct-horse"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(http.MethodPost, "/auth/login", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMeRequiresCredentials(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodGet, "/auth/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionSubjectUsesLookup(t *testing.T) {
	lookup := stubLookup{"1": {UserID: "1", RoleID: rbac.RoleDepartmentManager, DepartmentID: "7"}}
	h := newHarness(t, lookup)

	sess, err := h.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetPrincipal("1", rbac.RoleEmployee, "7")
	require.NoError(t, h.sessions.Commit(context.Background(), httptest.NewRecorder(), sess))
	cookie := &http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID}

	rr := h.do(http.MethodGet, "/auth/me", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rr.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, rbac.RoleDepartmentManager, me.RoleID, "role reassignment applies to live sessions")
	assert.Equal(t, 6, me.Level)

	delete(lookup, "1")
	rr = h.do(http.MethodGet, "/auth/me", "", func(r *http.Request) { r.AddCookie(cookie) })
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "deleted users lose their session")
}

func TestOTPEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodPost, "/auth/otp/request", `{"email":"ayu@staffora.test"}`, nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	var req map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &req))
	code := h.notifier.deliveries[0].Code

	rr = h.do(http.MethodPost, "/auth/otp/verify", `{"challenge_id":"`+req["challenge_id"]+`","code":"`+code+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = h.do(http.MethodPost, "/auth/otp/verify", `{"challenge_id":"`+req["challenge_id"]+`","code":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodPost, "/auth/otp/verify", `{"challenge_id":"nope","code":"12"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "bearer abc ")
	assert.Equal(t, "abc", BearerToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
}

func TestBearerSubjectUsesLookup(t *testing.T) {
	lookup := stubLookup{"1": {UserID: "1", RoleID: rbac.RoleViewer}}
	h := newHarness(t, lookup)
	token, err := h.svc.IssueToken(h.repo.users[0])
	require.NoError(t, err)
	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token.AccessToken) }

	rr := h.do(http.MethodGet, "/auth/me", "", bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, rbac.RoleViewer, me.RoleID, "downgrade applies before the token expires")
	assert.Empty(t, me.DepartmentID)

	delete(lookup, "1")
	rr = h.do(http.MethodGet, "/auth/me", "", bearer)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "deactivated users lose bearer access")
}
