//go:build !integration

package model_test

import (
	"testing"
	"time"

	"ingestion-pipeline/internal/domain/model"
)

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second
	max := 5 * time.Minute

	t.Run("grows exponentially within jitter bounds", func(t *testing.T) {
		for attempt := 1; attempt <= 5; attempt++ {
			want := base << (attempt - 1)
			if want > max {
				want = max
			}
			for i := 0; i < 50; i++ {
				d := model.BackoffDelay(attempt, base, max)
				if d < want/2 || d > want {
					t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, want/2, want)
				}
			}
		}
	})

	t.Run("caps at max", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			d := model.BackoffDelay(20, base, max)
			if d > max {
				t.Fatalf("delay %v exceeds the cap %v", d, max)
			}
		}
	})

	t.Run("jitter spreads concurrent retries", func(t *testing.T) {
		seen := map[time.Duration]bool{}
		for i := 0; i < 100; i++ {
			seen[model.BackoffDelay(3, base, max)] = true
		}
		if len(seen) < 2 {
			t.Error("expected jitter to produce varying delays")
		}
	})

	t.Run("non-positive base falls back to a sane default", func(t *testing.T) {
		if d := model.BackoffDelay(1, 0, max); d <= 0 {
			t.Errorf("expected positive delay, got %v", d)
		}
	})
}

func TestJobTerminal(t *testing.T) {
	cases := []struct {
		status model.JobStatus
		want   bool
	}{
		{model.JobStatusPending, false},
		{model.JobStatusInProgress, false},
		{model.JobStatusCompleted, true},
		{model.JobStatusFailedTerminal, true},
		{model.JobStatusCancelled, true},
	}
	for _, tc := range cases {
		j := &model.Job{Status: tc.status}
		if j.Terminal() != tc.want {
			t.Errorf("Terminal() for %s: expected %v", tc.status, tc.want)
		}
	}
}

func TestRecordClonePayload(t *testing.T) {
	rec := &model.Record{
		ID:      "sku-1",
		Payload: map[string]string{"article_name": "tea"},
	}

	clone := rec.ClonePayload()
	clone["article_name"] = "coffee"

	if rec.Payload["article_name"] != "tea" {
		t.Error("mutating the clone must not touch the record payload")
	}
}

func TestDecisionBlockingFailed(t *testing.T) {
	d := &model.Decision{Results: []model.RuleResult{
		{RuleName: "a", Verdict: model.RuleVerdictPass},
		{RuleName: "b", Verdict: model.RuleVerdictFail, Blocking: true},
	}}
	if !d.BlockingFailed() {
		t.Error("expected BlockingFailed to report the blocking failure")
	}

	d = &model.Decision{Results: []model.RuleResult{
		{RuleName: "a", Verdict: model.RuleVerdictFail},
	}}
	if d.BlockingFailed() {
		t.Error("non-blocking failure must not count as blocking")
	}
}
