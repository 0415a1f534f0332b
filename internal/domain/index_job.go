package domain

import (
	"fmt"
	"time"
)

// IndexJobStatus represents the status of an index job
type IndexJobStatus string

const (
	IndexJobStatusPending    IndexJobStatus = "pending"
	IndexJobStatusProcessing IndexJobStatus = "processing"
	IndexJobStatusCompleted  IndexJobStatus = "completed"
	IndexJobStatusFailed     IndexJobStatus = "failed"
)

// IndexJob is a queued request to chunk and embed one version.
type IndexJob struct {
	ID          string
	VersionID   string
	Status      IndexJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	// ClaimedAt is when a worker last took the job. A processing job whose
	// claim is older than the lease is handed out again.
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
}

// NewIndexJob creates a pending IndexJob for a version.
func NewIndexJob(id, versionID string, createdAt time.Time) *IndexJob {
	return &IndexJob{
		ID:        id,
		VersionID: versionID,
		Status:    IndexJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateIndexJob validates an IndexJob instance
func ValidateIndexJob(j *IndexJob) error {
	if j == nil {
		return fmt.Errorf("index job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("index job ID: %w", ErrMissingRequiredField)
	}
	if j.VersionID == "" {
		return fmt.Errorf("index job VersionID: %w", ErrMissingRequiredField)
	}
	if !isValidIndexJobStatus(j.Status) {
		return fmt.Errorf("index job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("index job Retries cannot be negative")
	}
	return nil
}

func isValidIndexJobStatus(s IndexJobStatus) bool {
	switch s {
	case IndexJobStatusPending, IndexJobStatusProcessing,
		IndexJobStatusCompleted, IndexJobStatusFailed:
		return true
	}
	return false
}
