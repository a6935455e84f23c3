package rules

import (
	"fmt"

	"ingestion-pipeline/internal/domain/model"
)

// Rule is a pure validation/normalization step. Evaluate must depend only on
// the record and the payload accumulated by earlier rules in the same pass:
// no I/O and no shared mutable state. A rule that needs wall-clock time takes
// it through a clock injected at build time. Replaying a record through the
// same rule set must always yield the same results.
type Rule interface {
	Name() string
	Evaluate(rec *model.Record, payload map[string]string) model.RuleResult
}

// Binding attaches the configured weight and blocking flag to a rule.
type Binding struct {
	Rule     Rule
	Weight   float64
	Blocking bool
}

// Set is an ordered, statically resolved collection of rule bindings. The
// version string identifies the configuration the set was built from;
// decisions record it so replays can be matched to the rule set that
// produced them.
type Set struct {
	Version  string
	Bindings []Binding
}

// Evaluate runs every rule in order against rec. Each rule sees the payload
// as normalized by earlier rules. A fault inside a rule becomes a fail
// verdict; a failing blocking rule stops the pass and the remaining rules
// are reported as skipped.
func (s *Set) Evaluate(rec *model.Record) ([]model.RuleResult, map[string]string) {
	payload := rec.ClonePayload()
	results := make([]model.RuleResult, 0, len(s.Bindings))
	blocked := false

	for _, b := range s.Bindings {
		if blocked {
			results = append(results, model.RuleResult{
				RuleName: b.Rule.Name(),
				Verdict:  model.RuleVerdictSkipped,
				Weight:   b.Weight,
				Blocking: b.Blocking,
				Reason:   "skipped after blocking failure",
			})
			continue
		}

		res := safeEvaluate(b.Rule, rec, payload)
		res.RuleName = b.Rule.Name()
		res.Weight = b.Weight
		res.Blocking = b.Blocking
		for k, v := range res.Delta {
			payload[k] = v
		}
		results = append(results, res)

		if b.Blocking && res.Verdict == model.RuleVerdictFail {
			blocked = true
		}
	}
	return results, payload
}

// safeEvaluate converts a panicking rule into a fail result so one faulty
// rule never takes down the engine.
func safeEvaluate(r Rule, rec *model.Record, payload map[string]string) (res model.RuleResult) {
	defer func() {
		if p := recover(); p != nil {
			res = model.RuleResult{
				Verdict: model.RuleVerdictFail,
				Reason:  fmt.Sprintf("rule fault: %v", p),
			}
		}
	}()
	return r.Evaluate(rec, payload)
}
