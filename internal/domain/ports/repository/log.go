package repository

import (
	"context"

	"ingestion-pipeline/internal/domain/model"
)

// IngestionLog is the append-only audit trail. Append assigns the next
// per-record sequence number and must never fail silently: an append error
// fails the enclosing processing attempt. Entries are never mutated or
// deleted.
type IngestionLog interface {
	Append(ctx context.Context, tx Tx, entry *model.LogEntry) error
	// ReadAll returns every entry for recordID in sequence order.
	ReadAll(ctx context.Context, recordID string) ([]model.LogEntry, error)
}
