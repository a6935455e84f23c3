package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
)

var _ repository.JobQueue = (*jobQueue)(nil)

const jobColumns = `id, record_id, record_revision, status, attempts, max_attempts, next_attempt_at,
lease_token, lease_expires_at, cancel_requested, last_error, created_at, updated_at`

// jobQueue is the Postgres-backed job queue. Lease acquisition rides on
// FOR UPDATE SKIP LOCKED so exactly one worker wins each job; every
// lease-scoped mutation checks the token so an expired-and-reassigned lease
// cannot overwrite newer state.
type jobQueue struct {
	pool        *pgxpool.Pool
	tm          repository.TransactionManager
	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewJobQueue(pool *pgxpool.Pool, tm repository.TransactionManager, backoffBase, backoffCap time.Duration) *jobQueue {
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	if backoffCap <= 0 {
		backoffCap = 5 * time.Minute
	}
	return &jobQueue{pool: pool, tm: tm, backoffBase: backoffBase, backoffCap: backoffCap}
}

func (q *jobQueue) Enqueue(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	const sql = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`

	var leaseExp interface{}
	if !job.LeaseExpiresAt.IsZero() {
		leaseExp = job.LeaseExpiresAt
	}
	_, err := execSQL(ctx, q.pool, tx, sql,
		job.ID, job.RecordID, job.RecordRevision, string(job.Status), job.Attempts, job.MaxAttempts,
		job.NextAttemptAt, job.LeaseToken, leaseExp, job.CancelRequested, job.LastError,
		job.CreatedAt, job.UpdatedAt)
	return err
}

// Acquire leases the oldest due pending job. The attempt counter increments
// here: attempt n is whatever processing happens under the nth lease.
func (q *jobQueue) Acquire(ctx context.Context, leaseTTL time.Duration) (*model.Job, error) {
	var job *model.Job

	err := q.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetch = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending' AND next_attempt_at <= now() AND NOT cancel_requested
ORDER BY next_attempt_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, q.pool, tx, fetch)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		fetched.Status = model.JobStatusInProgress
		fetched.Attempts++
		fetched.LeaseToken = uuid.NewString()
		fetched.LeaseExpiresAt = now.Add(leaseTTL)
		fetched.UpdatedAt = now

		const lease = `
UPDATE jobs
SET status = 'in_progress', attempts = $2, lease_token = $3, lease_expires_at = $4, updated_at = $5
WHERE id = $1;`
		if _, err := execSQL(ctx, q.pool, tx, lease,
			fetched.ID, fetched.Attempts, fetched.LeaseToken, fetched.LeaseExpiresAt, fetched.UpdatedAt); err != nil {
			return err
		}
		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (q *jobQueue) Complete(ctx context.Context, jobID, leaseToken string) error {
	const sql = `
UPDATE jobs
SET status = 'completed', lease_token = '', lease_expires_at = NULL, updated_at = now()
WHERE id = $1 AND lease_token = $2 AND status = 'in_progress';`
	return q.leaseScoped(ctx, sql, jobID, leaseToken)
}

func (q *jobQueue) MarkCancelled(ctx context.Context, jobID, leaseToken string) error {
	const sql = `
UPDATE jobs
SET status = 'cancelled', lease_token = '', lease_expires_at = NULL, updated_at = now()
WHERE id = $1 AND lease_token = $2 AND status = 'in_progress';`
	return q.leaseScoped(ctx, sql, jobID, leaseToken)
}

func (q *jobQueue) leaseScoped(ctx context.Context, sql, jobID, leaseToken string) error {
	tag, err := execSQL(ctx, q.pool, nil, sql, jobID, leaseToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func (q *jobQueue) Fail(ctx context.Context, jobID, leaseToken, reason string, retryable bool) (*model.Job, error) {
	var job *model.Job

	err := q.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetch = `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1 AND lease_token = $2 AND status = 'in_progress'
FOR UPDATE;`
		row, err := pickRow(ctx, q.pool, tx, fetch, jobID, leaseToken)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrLeaseLost
			}
			return err
		}

		now := time.Now().UTC()
		fetched.LastError = reason
		fetched.LeaseToken = ""
		fetched.UpdatedAt = now
		if retryable && fetched.Attempts < fetched.MaxAttempts {
			fetched.Status = model.JobStatusPending
			fetched.NextAttemptAt = now.Add(model.BackoffDelay(fetched.Attempts, q.backoffBase, q.backoffCap))
		} else {
			fetched.Status = model.JobStatusFailedTerminal
		}

		const update = `
UPDATE jobs
SET status = $2, next_attempt_at = $3, lease_token = '', lease_expires_at = NULL, last_error = $4, updated_at = $5
WHERE id = $1;`
		if _, err := execSQL(ctx, q.pool, tx, update,
			fetched.ID, string(fetched.Status), fetched.NextAttemptAt, fetched.LastError, fetched.UpdatedAt); err != nil {
			return err
		}
		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel marks a pending job cancelled outright; an in_progress job is only
// flagged, and the worker aborts at its next checkpoint.
func (q *jobQueue) Cancel(ctx context.Context, jobID string) error {
	return q.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetch = `SELECT status FROM jobs WHERE id = $1 FOR UPDATE;`
		row, err := pickRow(ctx, q.pool, tx, fetch, jobID)
		if err != nil {
			return err
		}
		var status string
		if err := row.Scan(&status); err != nil {
			return scanErr(err)
		}

		switch model.JobStatus(status) {
		case model.JobStatusPending:
			_, err = execSQL(ctx, q.pool, tx,
				`UPDATE jobs SET status = 'cancelled', cancel_requested = TRUE, updated_at = now() WHERE id = $1;`, jobID)
		case model.JobStatusInProgress:
			_, err = execSQL(ctx, q.pool, tx,
				`UPDATE jobs SET cancel_requested = TRUE, updated_at = now() WHERE id = $1;`, jobID)
		default:
			err = domain.ErrInvalidArgument
		}
		return err
	})
}

func (q *jobQueue) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	row, err := pickRow(ctx, q.pool, nil, `SELECT cancel_requested FROM jobs WHERE id = $1;`, jobID)
	if err != nil {
		return false, err
	}
	var flagged bool
	if err := row.Scan(&flagged); err != nil {
		return false, scanErr(err)
	}
	return flagged, nil
}

func (q *jobQueue) FindByID(ctx context.Context, jobID string) (*model.Job, error) {
	row, err := pickRow(ctx, q.pool, nil, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (q *jobQueue) ListTerminalFailures(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := pickRows(ctx, q.pool, nil,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'failed_terminal' ORDER BY updated_at DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, domain.Transient(rows.Err())
}

// Requeue gives a failed_terminal job a fresh set of attempts.
func (q *jobQueue) Requeue(ctx context.Context, jobID string) error {
	const sql = `
UPDATE jobs
SET status = 'pending', attempts = 0, next_attempt_at = now(), cancel_requested = FALSE, last_error = '', updated_at = now()
WHERE id = $1 AND status = 'failed_terminal';`
	tag, err := execSQL(ctx, q.pool, nil, sql, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (q *jobQueue) CountPending(ctx context.Context) (int, error) {
	row, err := pickRow(ctx, q.pool, nil, `SELECT count(*) FROM jobs WHERE status = 'pending';`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

// ReapExpired returns crashed workers' jobs to the queue: any in_progress
// job whose lease lapsed becomes pending again.
func (q *jobQueue) ReapExpired(ctx context.Context) (int, error) {
	const sql = `
UPDATE jobs
SET status = 'pending', lease_token = '', lease_expires_at = NULL, updated_at = now()
WHERE status = 'in_progress' AND lease_expires_at < now();`
	tag, err := execSQL(ctx, q.pool, nil, sql)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job      model.Job
		status   string
		leaseExp *time.Time
	)
	err := row.Scan(&job.ID, &job.RecordID, &job.RecordRevision, &status, &job.Attempts, &job.MaxAttempts,
		&job.NextAttemptAt, &job.LeaseToken, &leaseExp, &job.CancelRequested, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	job.Status = model.JobStatus(status)
	if leaseExp != nil {
		job.LeaseExpiresAt = *leaseExp
	}
	return &job, nil
}
