package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/staffora/staffora/internal/jobs"
)

const (
	// TaskRolesRefresh reloads role definitions and broadcasts the change.
	TaskRolesRefresh = "roles:refresh"
	// DefaultRolesRefreshSpec runs the refresh every five minutes.
	DefaultRolesRefreshSpec = "*/5 * * * *"
)

// RolesRefresher rebuilds the role snapshot and notifies listeners.
type RolesRefresher interface {
	Invalidate(ctx context.Context) error
}

// RolesRefreshJob coordinates the scheduled role reload.
type RolesRefreshJob struct {
	Roles   RolesRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRolesRefreshJob constructs the job handler.
func NewRolesRefreshJob(roles RolesRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *RolesRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RolesRefreshJob{Roles: roles, Logger: logger, Metrics: metrics}
}

// NewRolesRefreshTask creates the cron task.
func NewRolesRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRolesRefresh, nil, asynq.Queue(QueueDefault))
}

// Handle reloads roles and publishes an invalidation so API processes
// pick up the new snapshot.
func (j *RolesRefreshJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Roles == nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskRolesRefresh)
	if err := j.Roles.Invalidate(ctx); err != nil {
		j.Logger.Warn("roles refresh", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("roles refreshed")
	return tracker.End(nil)
}
