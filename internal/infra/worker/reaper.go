package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/domain/ports/repository"
	"ingestion-pipeline/internal/infra/metrics"
)

// LeaseReaper periodically returns jobs with lapsed leases to the pending
// queue. A lapsed lease means the worker holding it crashed or stalled past
// the lease TTL; the reaper makes the job acquirable again without waiting
// for an operator.
type LeaseReaper struct {
	queue    repository.JobQueue
	interval time.Duration
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLeaseReaper constructs a reaper that scans every `interval`.
// If interval <= 0 it defaults to 30 seconds.
func NewLeaseReaper(queue repository.JobQueue, interval time.Duration, logger *zerolog.Logger) *LeaseReaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &LeaseReaper{
		queue:    queue,
		interval: interval,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start begins the reaper loop in a background goroutine.
// Calling Start more than once has no effect.
func (r *LeaseReaper) Start(parentCtx context.Context) {
	if r.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	r.ctx = ctx
	r.cancel = cancel

	go r.loop()
}

func (r *LeaseReaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer func() {
		ticker.Stop()
		close(r.done)
	}()

	r.log.Info().Dur("interval", r.interval).Msg("lease reaper started")
	for {
		select {
		case <-r.ctx.Done():
			r.log.Info().Msg("lease reaper stopping")
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
			n, err := r.queue.ReapExpired(runCtx)
			cancel()
			if err != nil {
				r.log.Error().Err(err).Msg("lease reap failed")
				continue
			}
			if n > 0 {
				metrics.AddReaped(n)
				r.log.Warn().Int("reaped", n).Msg("returned expired leases to pending")
			}
		}
	}
}

// Stop cancels the reaper and waits for the loop to finish. Idempotent.
func (r *LeaseReaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.ctx = nil
	r.cancel = nil
	r.done = make(chan struct{})
}
