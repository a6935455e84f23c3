package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
	"ingestion-pipeline/internal/infra/logging"
	"ingestion-pipeline/internal/infra/metrics"
	"ingestion-pipeline/internal/usecase"
)

// JobProcessor pulls jobs off the queue and runs the decision engine on
// them. Each job is processed single-threaded end to end; only the engine's
// advisor call may block on external I/O.
type JobProcessor struct {
	queue        repository.JobQueue
	records      repository.RecordRepository
	engine       *usecase.DecisionEngine
	auditLog     repository.IngestionLog
	pollInterval time.Duration
	leaseTTL     time.Duration
	log          *zerolog.Logger
}

func NewJobProcessor(
	queue repository.JobQueue,
	records repository.RecordRepository,
	engine *usecase.DecisionEngine,
	auditLog repository.IngestionLog,
	pollInterval, leaseTTL time.Duration,
	logger *zerolog.Logger,
) *JobProcessor {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if leaseTTL <= 0 {
		leaseTTL = 2 * time.Minute
	}
	return &JobProcessor{
		queue:        queue,
		records:      records,
		engine:       engine,
		auditLog:     auditLog,
		pollInterval: pollInterval,
		leaseTTL:     leaseTTL,
		log:          logger,
	}
}

// Start polls for due jobs and hands them to the pool.
// This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("poll_interval", p.pollInterval).Msg("job processor started")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			if n, err := p.queue.CountPending(ctx); err == nil {
				metrics.SetQueueDepth(n)
			}
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *JobProcessor) processOne(ctx context.Context) {
	job, err := p.queue.Acquire(ctx, p.leaseTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to acquire job")
		}
		return
	}

	ctx = logging.WithJobID(ctx, job.ID)
	ctx = logging.WithRecordID(ctx, job.RecordID)
	log := logging.With(ctx, p.log).With().Int("attempt", job.Attempts).Logger()
	log.Info().Msg("processing job")
	start := time.Now()

	outcome := p.handleJob(ctx, job, &log)

	metrics.IncJob(outcome)
	log.Info().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("job finished")
}

// handleJob runs one attempt and settles the job's state. Returns the
// outcome label for metrics.
func (p *JobProcessor) handleJob(ctx context.Context, job *model.Job, log *zerolog.Logger) string {
	rec, err := p.records.FindRevision(ctx, nil, job.RecordID, job.RecordRevision)
	if err != nil {
		return p.settleFailure(ctx, job, err, log)
	}

	cancelled := func(ctx context.Context) (bool, error) {
		return p.queue.IsCancelRequested(ctx, job.ID)
	}

	_, err = p.engine.Process(ctx, rec, job.Attempts, cancelled)
	switch {
	case err == nil:
		if err := p.queue.Complete(ctx, job.ID, job.LeaseToken); err != nil {
			log.Error().Err(err).Msg("could not complete job")
			return "lease_lost"
		}
		return "completed"
	case errors.Is(err, domain.ErrJobCancelled):
		if err := p.queue.MarkCancelled(ctx, job.ID, job.LeaseToken); err != nil {
			log.Error().Err(err).Msg("could not mark job cancelled")
			return "lease_lost"
		}
		return "cancelled"
	default:
		return p.settleFailure(ctx, job, err, log)
	}
}

func (p *JobProcessor) settleFailure(ctx context.Context, job *model.Job, cause error, log *zerolog.Logger) string {
	retryable := domain.IsRetryable(cause)
	updated, err := p.queue.Fail(ctx, job.ID, job.LeaseToken, cause.Error(), retryable)
	if err != nil {
		log.Error().Err(err).Msg("could not record job failure")
		return "lease_lost"
	}

	switch updated.Status {
	case model.JobStatusPending:
		p.appendJobEvent(ctx, updated, model.LogEventJobRetried, cause, log)
		log.Warn().Err(cause).Time("next_attempt_at", updated.NextAttemptAt).Msg("job failed, will retry")
		return "retried"
	default:
		// Terminal failures are surfaced, never dropped: the job stays
		// queryable through the admin API.
		p.appendJobEvent(ctx, updated, model.LogEventJobFailed, cause, log)
		log.Error().Err(cause).Msg("job failed terminally")
		return "failed_terminal"
	}
}

// appendJobEvent records retry/terminal-failure events in the audit trail.
// The job state is already settled, so an append error here is logged
// rather than failing anything further.
func (p *JobProcessor) appendJobEvent(ctx context.Context, job *model.Job, event model.LogEvent, cause error, log *zerolog.Logger) {
	err := p.auditLog.Append(ctx, nil, &model.LogEntry{
		RecordID: job.RecordID,
		Event:    event,
		Fields: map[string]string{
			model.FieldAttempt: strconv.Itoa(job.Attempts),
			model.FieldError:   cause.Error(),
		},
		At: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("could not append job event to ingestion log")
	}
}
