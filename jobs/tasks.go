// Package jobs holds the background workers: the reorder scan, the
// discrepancy digest and periodic housekeeping.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskReorderScan walks the ledger for rows at or below their reorder
	// point and publishes replenishment alerts.
	TaskReorderScan = "ledger:reorder_scan"
	// TaskDiscrepancyDigest summarises recent shipped-vs-received
	// mismatches per store.
	TaskDiscrepancyDigest = "discrepancy:digest"
	// TaskIdempotencyCleanup prunes expired request keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// ReorderScanPayload tunes the reorder scan.
type ReorderScanPayload struct {
	// LocationID restricts the scan to one location; 0 scans everything.
	LocationID int64 `json:"location_id,omitempty"`
}

// NewReorderScanTask constructs the task.
func NewReorderScanTask(payload ReorderScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderScan, data), nil
}

// DiscrepancyDigestPayload tunes the digest window.
type DiscrepancyDigestPayload struct {
	WindowHours int `json:"window_hours,omitempty"`
}

// NewDiscrepancyDigestTask constructs the task.
func NewDiscrepancyDigestTask(payload DiscrepancyDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscrepancyDigest, data), nil
}

// IdempotencyCleanupPayload tunes the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewIdempotencyCleanupTask constructs the task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
