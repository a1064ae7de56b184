package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/staffora/staffora/internal/rbac"
)

// NewRBACService builds the role snapshot service shared by the server and the
// worker. Roles from ROLES_FILE replace the built-in set as the fallback used
// when the database holds no definitions.
func NewRBACService(cfg *Config, pool *pgxpool.Pool, client *redis.Client, logger *slog.Logger, observer rbac.SnapshotObserver) (*rbac.Service, error) {
	fallback := rbac.BuiltinRoles()
	if cfg.RolesFile != "" {
		roles, err := rbac.LoadRolesFile(cfg.RolesFile)
		if err != nil {
			return nil, fmt.Errorf("load roles file: %w", err)
		}
		fallback = roles
		logger.Info("roles file loaded", slog.String("path", cfg.RolesFile), slog.Int("roles", len(roles)))
	}

	svcCfg := rbac.ServiceConfig{
		Logger:   logger,
		Fallback: fallback,
		Observer: observer,
	}
	if pool != nil {
		svcCfg.Repo = rbac.NewRepository(pool)
	}
	if client != nil {
		svcCfg.Cache = rbac.NewSnapshotCache(client, cfg.RolesCacheTTL)
	}
	return rbac.NewService(svcCfg), nil
}
