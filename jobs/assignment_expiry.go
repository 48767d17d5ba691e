package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-fleet/meridian/internal/observability"
	"github.com/meridian-fleet/meridian/internal/policy"
)

// AssignmentExpirer deactivates past-due assignments and reports the
// affected principals. Implemented by roles.Repository.
type AssignmentExpirer interface {
	ExpireAssignments(ctx context.Context) ([]string, error)
}

// AssignmentExpiryJob sweeps role assignments whose valid_until has
// passed and invalidates the affected policy caches so revoked roles
// stop granting immediately, not at next login.
type AssignmentExpiryJob struct {
	repo     AssignmentExpirer
	registry *policy.CacheRegistry
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewAssignmentExpiryJob constructs the job.
func NewAssignmentExpiryJob(repo AssignmentExpirer, registry *policy.CacheRegistry, metrics *observability.Metrics, logger *slog.Logger) *AssignmentExpiryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentExpiryJob{repo: repo, registry: registry, metrics: metrics, logger: logger}
}

// Handle processes TaskAssignmentExpiry tasks.
func (j *AssignmentExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	userIDs, err := j.repo.ExpireAssignments(ctx)
	if err != nil {
		j.metrics.ObserveJob(TaskAssignmentExpiry, "error")
		j.logger.Error("assignment expiry sweep", slog.Any("error", err))
		return err
	}
	for _, userID := range userIDs {
		j.registry.Invalidate(userID)
	}
	j.metrics.ObserveJob(TaskAssignmentExpiry, "ok")
	if len(userIDs) > 0 {
		j.logger.Info("expired role assignments",
			slog.Int("principals", len(userIDs)))
	}
	return nil
}
