package usecase

import (
	"context"

	"ingestion-pipeline/internal/domain/model"
)

// SubmitInput is the boundary payload for enqueueing a record. RecordID is
// optional; when empty the service mints one.
type SubmitInput struct {
	RecordID string
	Source   string
	Payload  map[string]string
}

// SubmitReceipt is returned immediately: submission never evaluates rules
// synchronously.
type SubmitReceipt struct {
	RecordID string
	Revision int
	JobID    string
}

// IngestionService is the boundary the transport layer depends on.
type IngestionService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitReceipt, error)
	GetDecision(ctx context.Context, recordID string) (*model.Decision, error)
	GetLog(ctx context.Context, recordID string) ([]model.LogEntry, error)
}
