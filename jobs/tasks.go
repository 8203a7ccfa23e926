// Package jobs hosts the background worker: retention cleanups and the
// stale pending-movement scan run on cron schedules through Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aquaflow/aquaflow/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRetentionCleanup prunes expired idempotency keys and audit rows.
	TaskRetentionCleanup = "maintenance:retention"
	// TaskStalePendingScan reports pending movements left undecided too long.
	TaskStalePendingScan = "approvals:stale_scan"
)

// RetentionPayload bounds the cleanup windows.
type RetentionPayload struct {
	IdempotencyKeepDays int `json:"idempotency_keep_days"`
	AuditKeepDays       int `json:"audit_keep_days"`
}

// NewRetentionCleanupTask constructs the retention cleanup task.
func NewRetentionCleanupTask(payload RetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionCleanup, data), nil
}

// StalePendingPayload sets the staleness cutoff for the scan.
type StalePendingPayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// NewStalePendingScanTask constructs the stale-pending scan task.
func NewStalePendingScanTask(payload StalePendingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStalePendingScan, data), nil
}

// RetentionStore is the subset of cleanup operations the worker needs.
type RetentionStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewRetentionCleanupHandler prunes idempotency keys and audit rows past
// their retention windows.
func NewRetentionCleanupHandler(idempotency, audit RetentionStore, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("retention_cleanup")
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.IdempotencyKeepDays <= 0 {
			payload.IdempotencyKeepDays = 7
		}
		if payload.AuditKeepDays <= 0 {
			payload.AuditKeepDays = 180
		}
		if idempotency != nil {
			if err := idempotency.Cleanup(ctx, time.Duration(payload.IdempotencyKeepDays)*24*time.Hour); err != nil {
				logger.Error("idempotency cleanup", slog.Any("error", err))
				return tracker.End(err)
			}
		}
		if audit != nil {
			if err := audit.Cleanup(ctx, time.Duration(payload.AuditKeepDays)*24*time.Hour); err != nil {
				logger.Error("audit cleanup", slog.Any("error", err))
				return tracker.End(err)
			}
		}
		logger.Info("retention cleanup done",
			slog.Int("idempotency_keep_days", payload.IdempotencyKeepDays),
			slog.Int("audit_keep_days", payload.AuditKeepDays))
		return tracker.End(nil)
	}
}

// StalePendingCounter counts undecided movements older than cutoff.
type StalePendingCounter interface {
	CountStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewStalePendingScanHandler surfaces movements stuck in the approval queue.
// The scan only observes and reports; deciding them stays a human action.
func NewStalePendingScanHandler(counter StalePendingCounter, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("stale_pending_scan")
		var payload StalePendingPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.MaxAgeHours <= 0 {
			payload.MaxAgeHours = 48
		}
		cutoff := time.Now().Add(-time.Duration(payload.MaxAgeHours) * time.Hour)
		count, err := counter.CountStalePending(ctx, cutoff)
		if err != nil {
			logger.Error("stale pending scan", slog.Any("error", err))
			return tracker.End(err)
		}
		metrics.SetStalePending(count)
		if count > 0 {
			logger.Warn("stale pending movements",
				slog.Int64("count", count),
				slog.Int("max_age_hours", payload.MaxAgeHours))
		}
		return tracker.End(nil)
	}
}
