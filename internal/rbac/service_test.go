package rbac

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu    sync.Mutex
	roles []Role
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (s *stubRepo) ListRoleDefinitions(ctx context.Context) ([]Role, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]Role(nil), s.roles...), nil
}

func (s *stubRepo) set(roles []Role, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = roles
	s.err = err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type snapshotRecorder struct {
	roles   int
	version uint64
}

func (r *snapshotRecorder) ObserveSnapshot(roles int, version uint64) {
	r.roles = roles
	r.version = version
}

func TestServiceRefreshFromRepository(t *testing.T) {
	repo := &stubRepo{roles: []Role{{ID: "custom", Name: "Custom", Level: 4}}}
	rec := &snapshotRecorder{}
	svc := NewService(ServiceConfig{Repo: repo, Logger: quietLogger(), Fallback: BuiltinRoles(), Observer: rec})

	_, ok := svc.Store().GetRole(RoleEmployee)
	require.True(t, ok, "fallback seeds the store before the first refresh")

	n, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rec.roles)
	assert.Equal(t, svc.Store().Version(), rec.version)

	_, ok = svc.Store().GetRole(RoleEmployee)
	assert.False(t, ok)
	role, err := svc.GetRole("custom")
	require.NoError(t, err)
	assert.Equal(t, 4, role.Level)

	_, err = svc.GetRole("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceRefreshFallsBackToBuiltins(t *testing.T) {
	svc := NewService(ServiceConfig{Repo: &stubRepo{}, Logger: quietLogger(), Fallback: BuiltinRoles()})
	n, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(BuiltinRoles()), n)

	empty := NewService(ServiceConfig{Repo: &stubRepo{err: errors.New("db down")}, Logger: quietLogger()})
	_, err = empty.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRoles)
}

func TestServiceRefreshUsesCacheWhenRepositoryFails(t *testing.T) {
	client := newRedis(t)
	cache := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	repo := &stubRepo{roles: []Role{{ID: "cached", Name: "Cached", Level: 3, Permissions: []ScopedPermission{{Permission: LeaveRead, Scope: ScopeOwn}}}}}
	svc := NewService(ServiceConfig{Repo: repo, Cache: cache, Logger: quietLogger(), Fallback: BuiltinRoles()})
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	repo.set(nil, errors.New("db down"))
	other := NewService(ServiceConfig{Repo: repo, Cache: cache, Logger: quietLogger(), Fallback: BuiltinRoles()})
	_, err = other.Refresh(ctx)
	require.NoError(t, err)

	role, ok := other.Store().GetRole("cached")
	require.True(t, ok)
	assert.Equal(t, ScopeOwn, role.Permissions[0].Scope)
	assert.Equal(t, LeaveRead, role.Permissions[0].Permission)
}

func TestServiceRefreshRejectsInvalidDefinitions(t *testing.T) {
	repo := &stubRepo{roles: []Role{{ID: "bad", Name: "Bad", Level: 0}}}
	svc := NewService(ServiceConfig{Repo: repo, Logger: quietLogger(), Fallback: BuiltinRoles()})
	before := svc.Store().Version()

	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, before, svc.Store().Version(), "store untouched on invalid load")
}

func TestServiceRefreshCoalescesConcurrentCalls(t *testing.T) {
	repo := &stubRepo{roles: BuiltinRoles(), delay: 50 * time.Millisecond}
	svc := NewService(ServiceConfig{Repo: repo, Logger: quietLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, repo.calls.Load(), int32(10))
}

func TestServiceListenRefreshesOnInvalidation(t *testing.T) {
	client := newRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &stubRepo{roles: BuiltinRoles()}
	publisher := NewService(ServiceConfig{Repo: repo, Cache: NewSnapshotCache(client, time.Minute), Logger: quietLogger()})
	listener := NewService(ServiceConfig{Repo: repo, Cache: NewSnapshotCache(client, time.Minute), Logger: quietLogger()})
	_, err := listener.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, listener.Listen(ctx))

	repo.set(append(BuiltinRoles(), Role{ID: "auditor", Name: "Auditor", Level: 3}), nil)
	require.NoError(t, publisher.Invalidate(ctx))

	assert.Eventually(t, func() bool {
		_, ok := listener.Store().GetRole("auditor")
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServiceWarnsWhenDatabaseLacksTopLevelRole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	repo := &stubRepo{roles: []Role{{ID: "clerk", Name: "Clerk", Level: 3}}}
	svc := NewService(ServiceConfig{Repo: repo, Logger: logger, Fallback: BuiltinRoles()})

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rbac database roles lack top level")
	_, ok := svc.Store().GetRole(RoleAdministrator)
	assert.False(t, ok, "partial database set still replaces the fallback")

	buf.Reset()
	repo.set(BuiltinRoles(), nil)
	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "lack top level")
}
