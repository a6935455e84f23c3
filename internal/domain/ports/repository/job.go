package repository

import (
	"context"
	"time"

	"ingestion-pipeline/internal/domain/model"
)

// JobQueue owns job lifecycle and lease bookkeeping. Acquire is atomic:
// exactly one worker obtains a lease per job per lease epoch. Complete, Fail,
// and MarkCancelled require the lease token issued by Acquire and return
// domain.ErrLeaseLost when the token is no longer current.
type JobQueue interface {
	Enqueue(ctx context.Context, tx Tx, job *model.Job) error

	// Acquire leases the oldest due pending job and moves it to in_progress.
	// Returns domain.ErrNotFound when no job is due.
	Acquire(ctx context.Context, leaseTTL time.Duration) (*model.Job, error)

	Complete(ctx context.Context, jobID, leaseToken string) error

	// Fail records a failed attempt. Retryable failures below the attempt cap
	// return the job to pending with a backoff-delayed next attempt;
	// everything else moves it to failed_terminal. The updated job is
	// returned for logging.
	Fail(ctx context.Context, jobID, leaseToken, reason string, retryable bool) (*model.Job, error)

	// Cancel marks a pending job cancelled, or flags an in_progress job so
	// the worker aborts at its next checkpoint.
	Cancel(ctx context.Context, jobID string) error
	MarkCancelled(ctx context.Context, jobID, leaseToken string) error
	IsCancelRequested(ctx context.Context, jobID string) (bool, error)

	FindByID(ctx context.Context, jobID string) (*model.Job, error)
	ListTerminalFailures(ctx context.Context, limit int) ([]*model.Job, error)
	Requeue(ctx context.Context, jobID string) error
	CountPending(ctx context.Context) (int, error)

	// ReapExpired returns in_progress jobs whose lease has lapsed to pending.
	ReapExpired(ctx context.Context) (int, error)
}
