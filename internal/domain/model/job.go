package model

import (
	"math/rand"
	"time"
)

type JobStatus string

const (
	JobStatusPending        JobStatus = "pending"
	JobStatusInProgress     JobStatus = "in_progress"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusFailedTerminal JobStatus = "failed_terminal"
	JobStatusCancelled      JobStatus = "cancelled"
)

// Job wraps one record reference for asynchronous processing. A worker holds
// a lease on a job, not ownership: the lease token changes every acquisition
// and completion/failure must present the token that was issued.
type Job struct {
	ID              string
	RecordID        string
	RecordRevision  int
	Status          JobStatus
	Attempts        int
	MaxAttempts     int
	NextAttemptAt   time.Time
	LeaseToken      string
	LeaseExpiresAt  time.Time
	CancelRequested bool
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the job can never run again.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailedTerminal, JobStatusCancelled:
		return true
	}
	return false
}

// BackoffDelay computes the delay before retry attempt n (1-based) using
// exponential growth capped at max, with jitter in [d/2, d] so concurrent
// retries spread out. The result never exceeds max.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if max > 0 && d > max {
		d = max
	}
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
