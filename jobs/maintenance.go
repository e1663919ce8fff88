package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/observability"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// TokensPruneJob deletes token audit rows past their expiry. The Redis
// entries expire on their own; this keeps the Postgres mirror in step.
type TokensPruneJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTokensPruneJob constructs the job.
func NewTokensPruneJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *TokensPruneJob {
	return &TokensPruneJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes a TaskTokensPrune task.
func (j *TokensPruneJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tag, err := j.pool.Exec(ctx, `DELETE FROM tokens WHERE expires_at < NOW()`)
	if err != nil {
		j.metrics.JobObserved(TaskTokensPrune, "error")
		return err
	}
	j.metrics.JobObserved(TaskTokensPrune, "ok")
	j.logger.Info("pruned expired tokens", slog.Int64("deleted", tag.RowsAffected()))
	return nil
}

// AuditCleanupJob trims audit_logs rows older than the retention window.
type AuditCleanupJob struct {
	audit     *shared.AuditLogger
	retention time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewAuditCleanupJob constructs the job. retention is the fallback when
// the task payload does not carry one.
func NewAuditCleanupJob(audit *shared.AuditLogger, retention time.Duration, logger *slog.Logger, metrics *observability.Metrics) *AuditCleanupJob {
	return &AuditCleanupJob{audit: audit, retention: retention, logger: logger, metrics: metrics}
}

// Handle processes a TaskAuditCleanup task.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	retention := j.retention
	var payload AuditCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.metrics.JobObserved(TaskAuditCleanup, "skipped")
			return asynq.SkipRetry
		}
		if payload.Retention > 0 {
			retention = payload.Retention
		}
	}
	if err := j.audit.Cleanup(ctx, retention); err != nil {
		j.metrics.JobObserved(TaskAuditCleanup, "error")
		return err
	}
	j.metrics.JobObserved(TaskAuditCleanup, "ok")
	j.logger.Info("trimmed audit logs", slog.Duration("retention", retention))
	return nil
}
