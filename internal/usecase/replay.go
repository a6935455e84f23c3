package usecase

import (
	"strconv"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
)

// ReplayDecision reconstructs the latest decision for a record from its log
// entries alone: rule_applied entries rebuild the rule results, the policy
// recomputes confidence, and the verdict is derived the same way the engine
// derives it. Returns domain.ErrNotFound when the log holds no finalized
// decision.
func ReplayDecision(entries []model.LogEntry, policy ConfidencePolicy) (*model.Decision, error) {
	if policy.Threshold <= 0 {
		policy.Threshold = DefaultThreshold
	}

	var (
		current    []model.RuleResult
		curAttempt string
		finalized  *model.LogEntry
		results    []model.RuleResult
	)
	for i := range entries {
		e := entries[i]
		switch e.Event {
		case model.LogEventReceived:
			current, curAttempt = nil, ""
		case model.LogEventRuleApplied:
			// A new attempt re-applies the whole rule set; keep only the
			// results of the attempt currently being assembled.
			if a := e.Fields[model.FieldAttempt]; a != curAttempt {
				current, curAttempt = nil, a
			}
			current = append(current, resultFromEntry(e))
		case model.LogEventFinalized:
			finalized = &entries[i]
			results = current
			current, curAttempt = nil, ""
		case model.LogEventAborted:
			current, curAttempt = nil, ""
		}
	}
	if finalized == nil {
		return nil, domain.ErrNotFound
	}

	confidence, escalate := policy.Score(results)
	return &model.Decision{
		RecordID:       finalized.RecordID,
		RuleSetVersion: finalized.Fields[model.FieldRuleSet],
		Results:        results,
		Confidence:     confidence,
		Escalated:      escalate,
		Verdict:        verdictFor(results, confidence, policy.Threshold),
		DecidedAt:      finalized.At,
	}, nil
}

func resultFromEntry(e model.LogEntry) model.RuleResult {
	confidence, _ := strconv.ParseFloat(e.Fields[model.FieldConfidence], 64)
	weight, _ := strconv.ParseFloat(e.Fields[model.FieldWeight], 64)
	blocking, _ := strconv.ParseBool(e.Fields[model.FieldBlocking])
	return model.RuleResult{
		RuleName:   e.RuleName,
		Verdict:    model.RuleVerdict(e.Fields[model.FieldVerdict]),
		Confidence: confidence,
		Weight:     weight,
		Blocking:   blocking,
		Reason:     e.Fields[model.FieldReason],
	}
}
