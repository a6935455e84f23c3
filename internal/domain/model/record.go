package model

import "time"

// Record is one unit of ingested data. Records are immutable once created;
// a resubmission for the same ID produces a new revision, never an in-place
// mutation.
type Record struct {
	ID         string
	Revision   int
	Payload    map[string]string
	Source     string
	ReceivedAt time.Time
}

// ClonePayload returns a copy of the raw payload so rules can accumulate
// normalizations without touching the original record.
func (r *Record) ClonePayload() map[string]string {
	cp := make(map[string]string, len(r.Payload))
	for k, v := range r.Payload {
		cp[k] = v
	}
	return cp
}
