package adapter

import (
	"context"

	"ingestion-pipeline/internal/domain/model"
)

// Suggestion is an advisory classification from an external AI service.
// Raw carries the unparsed provider response for the audit trail.
type Suggestion struct {
	Label      string  `json:"label"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	Raw        string  `json:"-"`
}

// AIAdvisor is the port for the advisory AI step. Implementations never
// mutate state: the engine records the suggestion and computes the verdict
// itself. Timeouts, transport failures, and malformed responses should be
// returned wrapped in domain.ErrAdvisorUnavailable so the engine downgrades
// them to "no suggestion available".
type AIAdvisor interface {
	Name() string
	Consult(ctx context.Context, rec *model.Record, results []model.RuleResult) (Suggestion, error)
}
