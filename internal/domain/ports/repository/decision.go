package repository

import (
	"context"

	"ingestion-pipeline/internal/domain/model"
)

// DecisionRepository stores the latest authoritative decision per record.
// Save upserts keyed by record id ("latest decision wins"); earlier attempts
// remain reconstructable from the ingestion log.
type DecisionRepository interface {
	Save(ctx context.Context, tx Tx, d *model.Decision) error
	FindLatest(ctx context.Context, recordID string) (*model.Decision, error)
}
