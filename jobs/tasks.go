// Package jobs contains the asynq background workers: the assignment
// expiry sweep and the policy cache warm-up.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAssignmentExpiry deactivates role assignments whose validity
	// window has passed.
	TaskAssignmentExpiry = "policy:assignment_expiry"
	// TaskPolicyWarmup pre-loads policy caches for principals with live
	// sessions.
	TaskPolicyWarmup = "policy:cache_warmup"
)

// PolicyWarmupPayload optionally limits the warm-up to one principal.
type PolicyWarmupPayload struct {
	UserID    string `json:"user_id,omitempty"`
	CompanyID int64  `json:"company_id,omitempty"`
}

// NewAssignmentExpiryTask constructs the expiry sweep task.
func NewAssignmentExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskAssignmentExpiry, nil)
}

// NewPolicyWarmupTask constructs a warm-up task.
func NewPolicyWarmupTask(payload PolicyWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPolicyWarmup, data), nil
}
