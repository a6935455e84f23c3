package ai

import (
	"context"
	"time"

	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIAdvisor = (*NoopAdvisor)(nil)

// NoopAdvisor is a local/dev stand-in: it always suggests review with
// middling confidence, after a small simulated delay.
type NoopAdvisor struct{}

func NewNoopAdvisor() *NoopAdvisor { return &NoopAdvisor{} }

func (NoopAdvisor) Name() string { return "noop" }

func (NoopAdvisor) Consult(ctx context.Context, rec *model.Record, _ []model.RuleResult) (adapter.Suggestion, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return adapter.Suggestion{}, ctx.Err()
	}
	return adapter.Suggestion{
		Label:      "review",
		Rationale:  "noop advisor has no opinion on record " + rec.ID,
		Confidence: 0.5,
		Raw:        `{"label":"review"}`,
	}, nil
}
