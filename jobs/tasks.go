// Package jobs hosts the asynq worker, task definitions and the scheduled
// maintenance jobs: automatic backups, the overdue invoice sweep and
// low-stock scanning.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskBackupAuto triggers a scheduled dataset backup.
	TaskBackupAuto = "backup:auto"
	// TaskInvoiceOverdueScan flips past-due pending invoices to Overdue.
	TaskInvoiceOverdueScan = "invoice:overdue_scan"
	// TaskStockLowScan reports all products at or below reorder level.
	TaskStockLowScan = "stock:low_scan"
	// TaskStockAlert delivers a single low-stock alert raised at commit time.
	TaskStockAlert = "stock:alert"
)

// ScheduledPayload carries scheduling metadata shared by the cron tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// StockAlertPayload identifies one product that dropped to or below its
// reorder level.
type StockAlertPayload struct {
	ProductID int64  `json:"product_id"`
	Current   string `json:"current"`
	Reorder   string `json:"reorder"`
}

// NewBackupAutoTask constructs the scheduled backup task.
func NewBackupAutoTask(at time.Time) (*asynq.Task, error) {
	return scheduledTask(TaskBackupAuto, at)
}

// NewInvoiceOverdueScanTask constructs the overdue sweep task.
func NewInvoiceOverdueScanTask(at time.Time) (*asynq.Task, error) {
	return scheduledTask(TaskInvoiceOverdueScan, at)
}

// NewStockLowScanTask constructs the low-stock scan task.
func NewStockLowScanTask(at time.Time) (*asynq.Task, error) {
	return scheduledTask(TaskStockLowScan, at)
}

// NewStockAlertTask constructs a single-product alert task.
func NewStockAlertTask(payload StockAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAlert, body, asynq.Queue(QueueDefault)), nil
}

func scheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}
