package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/logger"
	"github.com/cloo-solutions/inkwell/internal/metrics"
)

const (
	// MaxRetries is the maximum number of attempts for an index job
	MaxRetries = 3
	// DefaultClaimLimit bounds the jobs claimed per poll
	DefaultClaimLimit = 10
)

// IndexJobRepository defines the interface for index job persistence
type IndexJobRepository interface {
	// ClaimPending marks up to limit pending jobs as processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// VersionIndexer chunks and embeds a version.
type VersionIndexer interface {
	IndexVersion(ctx context.Context, versionID string) error
}

// IndexWorker processes index jobs
type IndexWorker struct {
	repo    IndexJobRepository
	indexer VersionIndexer
	limit   int
	log     *logger.Logger
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, indexer VersionIndexer, log *logger.Logger) *IndexWorker {
	if log == nil {
		log = logger.NewNop()
	}
	return &IndexWorker{
		repo:    repo,
		indexer: indexer,
		limit:   DefaultClaimLimit,
		log:     log,
	}
}

// ProcessJobs claims and indexes one batch. It reports more when the batch
// was full.
func (w *IndexWorker) ProcessJobs(ctx context.Context) (bool, error) {
	jobs, err := w.repo.ClaimPending(ctx, w.limit)
	if err != nil {
		return false, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return false, nil
	}

	w.log.Debug("processing index jobs", "count", len(jobs))

	for _, job := range jobs {
		var err error
		if ctx.Err() != nil {
			err = w.release(context.WithoutCancel(ctx), job)
		} else {
			err = w.processJob(ctx, job)
		}
		if err != nil {
			w.log.Error("error processing job", "job_id", job.ID, "error", err)
		}
	}

	return len(jobs) >= w.limit, nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	// Status writes must land even when ctx is cancelled mid-job, or the job
	// would sit in processing until its lease expires.
	bookkeeping := context.WithoutCancel(ctx)

	// Retries can already be exhausted when the job was taken over from a
	// worker that died on it.
	if job.Retries >= MaxRetries {
		return w.markFailed(bookkeeping, job, fmt.Sprintf("giving up after %d attempts: %s", job.Retries, job.Error))
	}

	if err := w.indexer.IndexVersion(ctx, job.VersionID); err != nil {
		if ctx.Err() != nil {
			return w.release(bookkeeping, job)
		}
		return w.handleJobFailure(bookkeeping, job, err)
	}

	if err := w.repo.UpdateStatus(bookkeeping, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	metrics.IndexJobsTotal.WithLabelValues(string(domain.IndexJobStatusCompleted)).Inc()
	w.log.Info("index job completed", "job_id", job.ID, "version_id", job.VersionID)
	return nil
}

// release hands a job interrupted by shutdown back to the queue without
// charging it an attempt.
func (w *IndexWorker) release(ctx context.Context, job *domain.IndexJob) error {
	w.log.Info("index job interrupted, releasing", "job_id", job.ID, "version_id", job.VersionID)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusPending, "interrupted by shutdown"); err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}
	metrics.IndexJobsTotal.WithLabelValues("released").Inc()
	return nil
}

// handleJobFailure puts the job back in the queue until MaxRetries attempts
// have failed. A version that no longer exists fails immediately.
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	w.log.Warn("index job failed", "job_id", job.ID, "version_id", job.VersionID, "error", jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries || domain.IsCode(jobErr, domain.ErrCodeNotFound) {
		return w.markFailed(ctx, job, fmt.Sprintf("giving up after %d attempts: %v", job.Retries+1, jobErr))
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	metrics.IndexJobsTotal.WithLabelValues("retried").Inc()
	return nil
}

func (w *IndexWorker) markFailed(ctx context.Context, job *domain.IndexJob, errMsg string) error {
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
		return fmt.Errorf("failed to update job status to failed: %w", err)
	}
	metrics.IndexJobsTotal.WithLabelValues(string(domain.IndexJobStatusFailed)).Inc()
	return nil
}
