package ai

import (
	"context"
	"fmt"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIAdvisor = (*MultiAdvisor)(nil)

// MultiAdvisor tries each advisor in order and returns the first usable
// suggestion. Only when every provider fails does the consultation count as
// unavailable.
type MultiAdvisor struct {
	advisors []adapter.AIAdvisor
}

func NewMultiAdvisor(advisors ...adapter.AIAdvisor) *MultiAdvisor {
	return &MultiAdvisor{advisors: advisors}
}

func (m *MultiAdvisor) Name() string { return "multi" }

func (m *MultiAdvisor) Consult(ctx context.Context, rec *model.Record, results []model.RuleResult) (adapter.Suggestion, error) {
	var lastErr error
	for _, a := range m.advisors {
		if ctx.Err() != nil {
			break
		}
		s, err := a.Consult(ctx, rec, results)
		if err == nil {
			return s, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no advisors configured", domain.ErrAdvisorUnavailable)
	}
	return adapter.Suggestion{}, lastErr
}
