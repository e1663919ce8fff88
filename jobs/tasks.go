// Package jobs holds the background worker: expired token pruning and
// audit log retention, scheduled over Asynq.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTokensPrune removes expired token audit rows.
	TaskTokensPrune = "tokens:prune"
	// TaskAuditCleanup trims audit_logs past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// AuditCleanupPayload carries the retention window for a cleanup run.
type AuditCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewTokensPruneTask constructs the token pruning task.
func NewTokensPruneTask() *asynq.Task {
	return asynq.NewTask(TaskTokensPrune, nil)
}

// NewAuditCleanupTask constructs an audit cleanup task.
func NewAuditCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
