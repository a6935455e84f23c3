package model

import "time"

type Verdict string

const (
	VerdictAccepted    Verdict = "accepted"
	VerdictRejected    Verdict = "rejected"
	VerdictNeedsReview Verdict = "needs_review"
)

// AIConsultation records one advisory call made during finalization of a
// Decision. The advisor never binds the verdict: Accepted says whether the
// suggestion was taken into the decision annotation, and AcceptedBy is always
// "system" so the audit trail shows no implicit application.
type AIConsultation struct {
	InputSnapshot string
	RawResponse   string
	Label         string
	Rationale     string
	Confidence    float64
	Available     bool
	Accepted      bool
	AcceptedBy    string
	ConsultedAt   time.Time
}

// Decision is the aggregate outcome for one processing attempt of a record.
// A record may collect several decisions across retries; the latest one is
// authoritative and earlier ones survive in the ingestion log.
type Decision struct {
	ID             string
	RecordID       string
	RecordRevision int
	RuleSetVersion string
	Results        []RuleResult
	Confidence     float64
	Escalated      bool
	Consultation   *AIConsultation
	Verdict        Verdict
	DecidedAt      time.Time
}

// BlockingFailed reports whether any blocking rule failed.
func (d *Decision) BlockingFailed() bool {
	for _, r := range d.Results {
		if r.Blocking && r.Verdict == RuleVerdictFail {
			return true
		}
	}
	return false
}
