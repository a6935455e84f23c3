package ai

import (
	"context"

	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIAdvisor = (*limitedAdvisor)(nil)

type limitedAdvisor struct {
	inner adapter.AIAdvisor
	sem   chan struct{}
}

// NewLimitedAdvisor caps concurrent consultations across all workers.
func NewLimitedAdvisor(inner adapter.AIAdvisor, maxConcurrent int) adapter.AIAdvisor {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAdvisor{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAdvisor) Name() string { return l.inner.Name() }

func (l *limitedAdvisor) Consult(ctx context.Context, rec *model.Record, results []model.RuleResult) (adapter.Suggestion, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Suggestion{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Consult(ctx, rec, results)
}
