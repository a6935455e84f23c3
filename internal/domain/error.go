package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// ErrAdvisorUnavailable marks an AI consultation that produced no usable
	// suggestion (timeout, unreachable, malformed response). It is downgraded
	// inside the engine and never retried on its own.
	ErrAdvisorUnavailable = errors.New("advisor unavailable")

	// ErrJobCancelled is returned by a processing attempt that observed a
	// cancellation request at a checkpoint and aborted finalization.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrLeaseLost means a worker presented a lease token that is no longer
	// current for the job, typically after lease expiry and re-acquisition.
	ErrLeaseLost = errors.New("job lease lost")

	// ErrTransient tags infrastructure failures (log/store/AI transport) that
	// the job queue may retry with backoff.
	ErrTransient = errors.New("transient infrastructure error")
)

// Transient wraps err so IsRetryable recognizes it as a retryable
// infrastructure failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsRetryable reports whether a processing error should return the job to
// the queue for another attempt. Cancellation and plain domain errors are
// terminal for the job.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
