package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
)

const systemPrompt = `You advise a deterministic record-ingestion pipeline. ` +
	`The pipeline has already evaluated its validation rules; your suggestion is advisory ` +
	`and a human reviewer makes the final call. ` +
	`Reply with a single JSON object and nothing else: ` +
	`{"label": "accept"|"reject"|"review", "rationale": "<one or two sentences>", "confidence": <number 0..1>}`

// buildPrompt renders the record payload and rule outcomes for the advisor.
func buildPrompt(rec *model.Record, results []model.RuleResult) string {
	// Rule outcomes go first: when a prompt gets trimmed to the token
	// budget it is the payload bulk that should fall off.
	var b strings.Builder
	b.WriteString("Rule outcomes:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s (confidence %.2f) %s\n", r.RuleName, r.Verdict, r.Confidence, r.Reason)
	}
	b.WriteString("\nShould this record be accepted, rejected, or sent to review?\n\nRecord payload:\n")
	payload, _ := json.Marshal(rec.Payload)
	b.Write(payload)
	return b.String()
}

// parseSuggestion extracts the JSON suggestion from a model reply. Code
// fences are tolerated; anything else malformed counts as advisor
// unavailability.
func parseSuggestion(raw string) (adapter.Suggestion, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var s adapter.Suggestion
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return adapter.Suggestion{}, fmt.Errorf("%w: malformed response: %v", domain.ErrAdvisorUnavailable, err)
	}
	switch s.Label {
	case "accept", "reject", "review":
	default:
		return adapter.Suggestion{}, fmt.Errorf("%w: unexpected label %q", domain.ErrAdvisorUnavailable, s.Label)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return adapter.Suggestion{}, fmt.Errorf("%w: confidence %v out of range", domain.ErrAdvisorUnavailable, s.Confidence)
	}
	s.Raw = raw
	return s, nil
}
