package usecase

import "ingestion-pipeline/internal/domain/model"

// DefaultThreshold is the escalation threshold applied when configuration
// does not set one. Treat it as a tunable, not a load-bearing constant.
const DefaultThreshold = 0.7

// ConfidencePolicy maps rule outcomes to an aggregate confidence and an
// escalation decision. It is a pure function of the rule results.
type ConfidencePolicy struct {
	Threshold float64
}

// Score computes the weighted average of per-rule confidence contributions.
// A failed blocking rule forces confidence to 0 and suppresses escalation:
// the AI is never asked to resurrect a record the rules already rejected
// outright, and never consulted when the rules are confident.
func (p ConfidencePolicy) Score(results []model.RuleResult) (confidence float64, escalate bool) {
	var sum, weight float64
	blockingFailed := false
	for _, r := range results {
		if r.Verdict == model.RuleVerdictSkipped {
			continue
		}
		if r.Blocking && r.Verdict == model.RuleVerdictFail {
			blockingFailed = true
		}
		sum += r.Weight * r.Confidence
		weight += r.Weight
	}
	if blockingFailed {
		return 0, false
	}
	if weight == 0 {
		return 0, false
	}
	confidence = sum / weight
	return confidence, confidence < p.Threshold
}

// verdictFor derives the final verdict: a blocking failure rejects
// regardless of anything else, confidence at or above the threshold accepts,
// and the ambiguous middle goes to human review.
func verdictFor(results []model.RuleResult, confidence, threshold float64) model.Verdict {
	for _, r := range results {
		if r.Blocking && r.Verdict == model.RuleVerdictFail {
			return model.VerdictRejected
		}
	}
	if confidence >= threshold {
		return model.VerdictAccepted
	}
	return model.VerdictNeedsReview
}
