package repository

import (
	"context"

	"ingestion-pipeline/internal/domain/model"
)

// RecordRepository stores immutable record revisions. Save never mutates an
// existing revision; resubmission inserts the next revision for the same id.
type RecordRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.Record) error
	// FindLatest returns the highest revision for id, or domain.ErrNotFound.
	FindLatest(ctx context.Context, tx Tx, id string) (*model.Record, error)
	// FindRevision returns one specific revision, or domain.ErrNotFound.
	FindRevision(ctx context.Context, tx Tx, id string, revision int) (*model.Record, error)
}
