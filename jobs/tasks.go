package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsWarmup refreshes the cached reports of the current periods.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskLedgerImported invalidates cached aggregates after an out-of-band import.
	TaskLedgerImported = "ledger:imported"
)

// WarmupPayload selects the reports refreshed by a warm-up run.
type WarmupPayload struct {
	// Year defaults to the current year when zero.
	Year int `json:"year,omitempty"`
	// Months is the growth window; zero means the default window.
	Months int `json:"months,omitempty"`
}

// NewWarmupTask constructs a warm-up task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	if payload.Year < 0 || payload.Months < 0 {
		return nil, fmt.Errorf("jobs: invalid warmup payload %+v", payload)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}

// LedgerImportedPayload identifies the batch that changed the ledger.
type LedgerImportedPayload struct {
	BatchID string `json:"batch_id"`
	Rows    int64  `json:"rows"`
	Source  string `json:"source"`
}

// NewLedgerImportedTask constructs a cache invalidation task.
func NewLedgerImportedTask(payload LedgerImportedPayload) (*asynq.Task, error) {
	if payload.BatchID == "" {
		return nil, fmt.Errorf("jobs: batch id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerImported, data), nil
}
