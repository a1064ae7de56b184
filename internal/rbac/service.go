package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrNoRoles indicates that no source produced a role set.
var ErrNoRoles = errors.New("rbac: no role definitions available")

// SnapshotObserver is notified whenever a new role snapshot is installed.
type SnapshotObserver interface {
	ObserveSnapshot(roles int, version uint64)
}

// ServiceConfig collects Service dependencies.
type ServiceConfig struct {
	Store    *Store
	Repo     Repository
	Cache    *SnapshotCache
	Logger   *slog.Logger
	Fallback []Role
	Observer SnapshotObserver
}

// Service keeps the Store in sync with persisted role definitions.
type Service struct {
	store    *Store
	repo     Repository
	cache    *SnapshotCache
	logger   *slog.Logger
	fallback []Role
	observer SnapshotObserver
	group    singleflight.Group
}

// NewService constructs a Service. A nil Store is replaced by one seeded with
// the fallback roles.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewStore(cfg.Fallback)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		repo:     cfg.Repo,
		cache:    cfg.Cache,
		logger:   logger,
		fallback: cfg.Fallback,
		observer: cfg.Observer,
	}
}

// Store exposes the live role store.
func (s *Service) Store() *Store {
	return s.store
}

// GetRole resolves a role from the live snapshot.
func (s *Service) GetRole(id string) (Role, error) {
	role, ok := s.store.GetRole(id)
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

// ListRoles returns every role in the live snapshot.
func (s *Service) ListRoles() []Role {
	return s.store.Roles()
}

// Refresh reloads role definitions and swaps them into the store. Concurrent
// callers share one load. The repository wins; the shared cache is used when
// the repository fails; the fallback set is used when neither has roles.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

func (s *Service) refresh(ctx context.Context) (int, error) {
	roles, source, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if err := ValidateRoles(roles); err != nil {
		return 0, err
	}
	version := s.store.Replace(roles)
	if s.observer != nil {
		s.observer.ObserveSnapshot(len(roles), version)
	}
	if source != "cache" {
		if err := s.cache.Save(ctx, roles); err != nil {
			s.logger.Warn("rbac cache save", slog.Any("error", err))
		}
	}
	s.logger.Info("rbac roles loaded", slog.String("source", source), slog.Int("roles", len(roles)), slog.Uint64("version", version))
	return len(roles), nil
}

func (s *Service) load(ctx context.Context) ([]Role, string, error) {
	var repoErr error
	if s.repo != nil {
		roles, err := s.repo.ListRoleDefinitions(ctx)
		if err == nil && len(roles) > 0 {
			s.warnMissingTopLevel(roles)
			return roles, "database", nil
		}
		repoErr = err
	}
	if repoErr != nil {
		s.logger.Warn("rbac load roles", slog.Any("error", repoErr))
		roles, ok, err := s.cache.Load(ctx)
		if err != nil {
			s.logger.Warn("rbac cache load", slog.Any("error", err))
		}
		if ok && len(roles) > 0 {
			return roles, "cache", nil
		}
	}
	if len(s.fallback) > 0 {
		return s.fallback, "builtin", nil
	}
	if repoErr != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoRoles, repoErr)
	}
	return nil, "", ErrNoRoles
}

// warnMissingTopLevel flags a database role set that has no role at the highest
// fallback level. The fallback is not merged in, so such a set can leave nobody
// able to administer roles until the seed step runs.
func (s *Service) warnMissingTopLevel(roles []Role) {
	top := 0
	for _, r := range s.fallback {
		if r.Level > top {
			top = r.Level
		}
	}
	if top == 0 {
		return
	}
	for _, r := range roles {
		if r.Level >= top {
			return
		}
	}
	s.logger.Warn("rbac database roles lack top level", slog.Int("level", top), slog.Int("roles", len(roles)))
}

// Invalidate refreshes the local snapshot and notifies other instances.
func (s *Service) Invalidate(ctx context.Context) error {
	if _, err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.cache.Publish(ctx, s.store.Version())
}

// Listen refreshes the store whenever another instance publishes an
// invalidation, until ctx is done.
func (s *Service) Listen(ctx context.Context) error {
	return s.cache.Subscribe(ctx, func(ctx context.Context) {
		if _, err := s.Refresh(ctx); err != nil {
			s.logger.Error("rbac refresh on invalidation", slog.Any("error", err))
		}
	})
}
