package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/backup"
	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BackupAutoJob writes a scheduled workbook backup.
type BackupAutoJob struct {
	Backups *backup.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBackupAutoJob wires dependencies for the scheduled backup handler.
func NewBackupAutoJob(backups *backup.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupAutoJob {
	return &BackupAutoJob{Backups: backups, Logger: logger, Metrics: metrics}
}

// Handle processes backup:auto tasks.
func (j *BackupAutoJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Backups == nil {
		return errors.New("backup auto: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBackupAuto)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	file, err := j.Backups.Create(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("scheduled backup failed", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("scheduled backup complete",
		slog.String("file", file.Name),
		slog.Int64("bytes", file.SizeBytes),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *BackupAutoJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *BackupAutoJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
