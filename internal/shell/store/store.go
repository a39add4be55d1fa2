package store

import (
	"context"
	"time"

	"github.com/artpar/invoicemill/internal/core/job"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for extraction jobs.
type Store interface {
	// Job operations
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context, opts ListOptions) ([]job.Job, error)
	CountJobs(ctx context.Context) (int, error)
	DeleteJob(ctx context.Context, id string) error

	// ClaimNextPending atomically moves the oldest pending job to
	// processing and returns it. Returns ErrNotFound when the queue is
	// empty.
	ClaimNextPending(ctx context.Context) (*job.Job, error)

	// Progress and completion
	UpdateProgress(ctx context.Context, id string, pagesDone, pagesTotal int) error
	CompleteJob(ctx context.Context, j *job.Job) error
	FailJob(ctx context.Context, id, message string) error

	// ListFinishedBefore returns terminal jobs that finished before the
	// cutoff, for retention cleanup.
	ListFinishedBefore(ctx context.Context, cutoff time.Time, opts ListOptions) ([]job.Job, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
