package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-fleet/meridian/internal/observability"
	"github.com/meridian-fleet/meridian/internal/policy"
)

// SessionLister returns the principals with unexpired sessions so their
// policy caches can be loaded ahead of their next request.
type SessionLister interface {
	ActivePrincipals(ctx context.Context) (map[string]int64, error)
}

// PolicyWarmupJob pre-loads session policy caches. Targeted warm-ups
// carry a user id in the payload; the scheduled run warms everyone with
// a live session.
type PolicyWarmupJob struct {
	sessions SessionLister
	registry *policy.CacheRegistry
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewPolicyWarmupJob constructs the job.
func NewPolicyWarmupJob(sessions SessionLister, registry *policy.CacheRegistry, metrics *observability.Metrics, logger *slog.Logger) *PolicyWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyWarmupJob{sessions: sessions, registry: registry, metrics: metrics, logger: logger}
}

// Handle processes TaskPolicyWarmup tasks.
func (j *PolicyWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PolicyWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	principals := map[string]int64{}
	if payload.UserID != "" {
		principals[payload.UserID] = payload.CompanyID
	} else {
		var err error
		principals, err = j.sessions.ActivePrincipals(ctx)
		if err != nil {
			j.metrics.ObserveJob(TaskPolicyWarmup, "error")
			return err
		}
	}

	var failures int
	for userID, companyID := range principals {
		cache := j.registry.For(userID)
		if cache.IsInitialized() {
			continue
		}
		if err := cache.Load(ctx, userID, companyID); err != nil {
			failures++
			j.logger.Warn("policy warm-up load",
				slog.String("user_id", userID), slog.Any("error", err))
		}
		j.metrics.ObserveCacheLoad(cache.IsInitialized())
	}
	if failures > 0 {
		j.metrics.ObserveJob(TaskPolicyWarmup, "partial")
	} else {
		j.metrics.ObserveJob(TaskPolicyWarmup, "ok")
	}
	return nil
}
