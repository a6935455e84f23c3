package model

import "time"

type LogEvent string

const (
	LogEventReceived    LogEvent = "received"
	LogEventRuleApplied LogEvent = "rule_applied"
	LogEventEscalated   LogEvent = "escalated"
	LogEventAIConsulted LogEvent = "ai_consulted"
	LogEventFinalized   LogEvent = "decision_finalized"
	LogEventJobRetried  LogEvent = "job_retried"
	LogEventJobFailed   LogEvent = "job_failed"
	LogEventAborted     LogEvent = "aborted"
)

// Common field keys used in LogEntry.Fields. The finalized entry plus the
// rule_applied entries carry enough to rebuild the latest decision from the
// log alone.
const (
	FieldVerdict    = "verdict"
	FieldConfidence = "confidence"
	FieldWeight     = "weight"
	FieldBlocking   = "blocking"
	FieldReason     = "reason"
	FieldEscalated  = "escalated"
	FieldAttempt    = "attempt"
	FieldRuleSet    = "rule_set_version"
	FieldAdvisor    = "advisor_available"
	FieldLabel      = "label"
	FieldSource     = "source"
	FieldError      = "error"
)

// LogEntry is one append-only audit event. Entries for a record are totally
// ordered by Seq, which the ingestion log assigns at append time.
type LogEntry struct {
	RecordID string
	Seq      int64
	Event    LogEvent
	RuleName string
	Fields   map[string]string
	At       time.Time
}
