package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
	portuc "ingestion-pipeline/internal/domain/ports/usecase"
	"ingestion-pipeline/internal/infra/logging"
)

var _ portuc.IngestionService = (*IngestionUseCase)(nil)

// IngestionUseCase is the boundary service: it accepts records, enqueues the
// processing job, and serves decision/log reads. Rule evaluation never runs
// on this path.
type IngestionUseCase struct {
	records     repository.RecordRepository
	decisions   repository.DecisionRepository
	auditLog    repository.IngestionLog
	queue       repository.JobQueue
	tm          repository.TransactionManager
	maxAttempts int
	log         *zerolog.Logger
}

func NewIngestionUseCase(
	records repository.RecordRepository,
	decisions repository.DecisionRepository,
	auditLog repository.IngestionLog,
	queue repository.JobQueue,
	tm repository.TransactionManager,
	maxAttempts int,
	logger *zerolog.Logger,
) *IngestionUseCase {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &IngestionUseCase{
		records:     records,
		decisions:   decisions,
		auditLog:    auditLog,
		queue:       queue,
		tm:          tm,
		maxAttempts: maxAttempts,
		log:         logger,
	}
}

// Submit stores a new immutable record revision, appends the received log
// entry, and enqueues a job in one transaction, so a record can never exist
// without its audit trail or its job. Returns immediately.
func (uc *IngestionUseCase) Submit(ctx context.Context, in portuc.SubmitInput) (*portuc.SubmitReceipt, error) {
	if len(in.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidArgument)
	}

	recordID := in.RecordID
	if recordID == "" {
		recordID = ulid.Make().String()
	}

	revision := 1
	if prev, err := uc.records.FindLatest(ctx, nil, recordID); err == nil {
		// Resubmission supersedes: a new revision, never an in-place update.
		revision = prev.Revision + 1
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	rec := &model.Record{
		ID:         recordID,
		Revision:   revision,
		Payload:    in.Payload,
		Source:     in.Source,
		ReceivedAt: time.Now().UTC(),
	}
	job := &model.Job{
		ID:             uuid.NewString(),
		RecordID:       recordID,
		RecordRevision: revision,
		Status:         model.JobStatusPending,
		MaxAttempts:    uc.maxAttempts,
		NextAttemptAt:  rec.ReceivedAt,
		CreatedAt:      rec.ReceivedAt,
		UpdatedAt:      rec.ReceivedAt,
	}

	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.records.Save(ctx, tx, rec); err != nil {
			return err
		}
		if err := uc.auditLog.Append(ctx, tx, &model.LogEntry{
			RecordID: recordID,
			Event:    model.LogEventReceived,
			Fields: map[string]string{
				model.FieldSource: in.Source,
				"revision":        strconv.Itoa(revision),
			},
			At: rec.ReceivedAt,
		}); err != nil {
			return err
		}
		return uc.queue.Enqueue(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}

	logging.With(ctx, uc.log).Info().
		Str("record_id", recordID).
		Int("revision", revision).
		Str("job_id", job.ID).
		Str("source", in.Source).
		Msg("record submitted")
	return &portuc.SubmitReceipt{RecordID: recordID, Revision: revision, JobID: job.ID}, nil
}

// GetDecision returns the latest authoritative decision for recordID.
func (uc *IngestionUseCase) GetDecision(ctx context.Context, recordID string) (*model.Decision, error) {
	if recordID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.decisions.FindLatest(ctx, recordID)
}

// GetLog returns the full ordered audit trail for recordID.
func (uc *IngestionUseCase) GetLog(ctx context.Context, recordID string) ([]model.LogEntry, error) {
	if recordID == "" {
		return nil, domain.ErrInvalidArgument
	}
	entries, err := uc.auditLog.ReadAll(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}
