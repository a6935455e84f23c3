package model

type RuleVerdict string

const (
	RuleVerdictPass    RuleVerdict = "pass"
	RuleVerdictFail    RuleVerdict = "fail"
	RuleVerdictWarn    RuleVerdict = "warn"
	RuleVerdictSkipped RuleVerdict = "skipped"
)

// RuleResult is the outcome of one rule applied to one record. Weight and
// Blocking are copied from the rule binding so a result slice is
// self-contained for scoring and replay.
type RuleResult struct {
	RuleName   string
	Verdict    RuleVerdict
	Confidence float64 // per-rule contribution in [0,1]
	Weight     float64
	Blocking   bool
	Delta      map[string]string // normalized payload fields written by this rule
	Reason     string
}
