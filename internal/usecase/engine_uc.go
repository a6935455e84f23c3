package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
	"ingestion-pipeline/internal/domain/ports/repository"
	"ingestion-pipeline/internal/domain/rules"
	"ingestion-pipeline/internal/infra/logging"
	"ingestion-pipeline/internal/infra/metrics"
)

// CancelCheck reports whether the current processing attempt has been asked
// to cancel. The engine consults it at its checkpoints: after rule
// evaluation and after AI consultation.
type CancelCheck func(ctx context.Context) (bool, error)

// DecisionEngine orchestrates the rule set, the confidence policy, and the
// advisory AI port into one per-record decision. The whole sequence is
// deterministic apart from timestamps and advisor content, so re-running an
// attempt after a retry produces the same decision.
type DecisionEngine struct {
	rules          *rules.Set
	policy         ConfidencePolicy
	advisor        adapter.AIAdvisor
	decisions      repository.DecisionRepository
	auditLog       repository.IngestionLog
	tm             repository.TransactionManager
	advisorTimeout time.Duration
	log            *zerolog.Logger
}

func NewDecisionEngine(
	set *rules.Set,
	policy ConfidencePolicy,
	advisor adapter.AIAdvisor,
	decisions repository.DecisionRepository,
	auditLog repository.IngestionLog,
	tm repository.TransactionManager,
	advisorTimeout time.Duration,
	logger *zerolog.Logger,
) *DecisionEngine {
	if policy.Threshold <= 0 {
		policy.Threshold = DefaultThreshold
	}
	if advisorTimeout <= 0 {
		advisorTimeout = 10 * time.Second
	}
	return &DecisionEngine{
		rules:          set,
		policy:         policy,
		advisor:        advisor,
		decisions:      decisions,
		auditLog:       auditLog,
		tm:             tm,
		advisorTimeout: advisorTimeout,
		log:            logger,
	}
}

// Process runs one processing attempt for rec. On cancellation it appends an
// aborted entry and returns domain.ErrJobCancelled without a decision; any
// log append failure fails the attempt so the audit trail stays complete.
func (e *DecisionEngine) Process(ctx context.Context, rec *model.Record, attempt int, cancelled CancelCheck) (*model.Decision, error) {
	log := logging.With(ctx, e.log)
	defer logging.TraceDuration(log, "DecisionEngine.Process")()

	results, _ := e.rules.Evaluate(rec)
	for _, r := range results {
		if err := e.auditLog.Append(ctx, nil, ruleAppliedEntry(rec, attempt, r)); err != nil {
			return nil, err
		}
	}

	if err := e.checkpoint(ctx, rec, attempt, cancelled, "rule_evaluation"); err != nil {
		return nil, err
	}

	confidence, escalate := e.policy.Score(results)

	var consultation *model.AIConsultation
	if escalate {
		if err := e.auditLog.Append(ctx, nil, &model.LogEntry{
			RecordID: rec.ID,
			Event:    model.LogEventEscalated,
			Fields: map[string]string{
				model.FieldConfidence: formatFloat(confidence),
				model.FieldAttempt:    strconv.Itoa(attempt),
			},
			At: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}

		consultation = e.consult(ctx, rec, results)

		fields := map[string]string{
			model.FieldAdvisor: strconv.FormatBool(consultation.Available),
			model.FieldAttempt: strconv.Itoa(attempt),
		}
		if consultation.Available {
			fields[model.FieldLabel] = consultation.Label
			fields[model.FieldConfidence] = formatFloat(consultation.Confidence)
		}
		if err := e.auditLog.Append(ctx, nil, &model.LogEntry{
			RecordID: rec.ID,
			Event:    model.LogEventAIConsulted,
			Fields:   fields,
			At:       time.Now().UTC(),
		}); err != nil {
			return nil, err
		}

		if err := e.checkpoint(ctx, rec, attempt, cancelled, "ai_consultation"); err != nil {
			return nil, err
		}
	}

	verdict := verdictFor(results, confidence, e.policy.Threshold)
	if consultation != nil && consultation.Available && verdict == model.VerdictNeedsReview {
		// The suggestion is attached as an annotation for the human
		// reviewer; the verdict above was computed without it.
		consultation.Accepted = true
	}

	decision := &model.Decision{
		ID:             decisionID(rec, e.rules.Version),
		RecordID:       rec.ID,
		RecordRevision: rec.Revision,
		RuleSetVersion: e.rules.Version,
		Results:        results,
		Confidence:     confidence,
		Escalated:      escalate,
		Consultation:   consultation,
		Verdict:        verdict,
		DecidedAt:      time.Now().UTC(),
	}

	err := e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := e.decisions.Save(ctx, tx, decision); err != nil {
			return err
		}
		return e.auditLog.Append(ctx, tx, finalizedEntry(decision, attempt))
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveDecision(string(verdict), escalate, confidence)
	log.Info().
		Str("verdict", string(verdict)).
		Float64("confidence", confidence).
		Bool("escalated", escalate).
		Msg("decision finalized")
	return decision, nil
}

func (e *DecisionEngine) checkpoint(ctx context.Context, rec *model.Record, attempt int, cancelled CancelCheck, stage string) error {
	if cancelled == nil {
		return nil
	}
	stop, err := cancelled(ctx)
	if err != nil {
		return domain.Transient(err)
	}
	if !stop {
		return nil
	}
	if err := e.auditLog.Append(ctx, nil, &model.LogEntry{
		RecordID: rec.ID,
		Event:    model.LogEventAborted,
		Fields: map[string]string{
			model.FieldAttempt: strconv.Itoa(attempt),
			model.FieldReason:  "cancelled after " + stage,
		},
		At: time.Now().UTC(),
	}); err != nil {
		return err
	}
	return domain.ErrJobCancelled
}

// consult calls the advisor with a bounded timeout. Every failure mode
// collapses to "no suggestion available"; the attempt continues either way.
func (e *DecisionEngine) consult(ctx context.Context, rec *model.Record, results []model.RuleResult) *model.AIConsultation {
	snapshot := consultSnapshot(rec, results)
	consultation := &model.AIConsultation{
		InputSnapshot: snapshot,
		AcceptedBy:    "system",
		ConsultedAt:   time.Now().UTC(),
	}
	if e.advisor == nil {
		return consultation
	}

	cctx, cancel := context.WithTimeout(ctx, e.advisorTimeout)
	defer cancel()

	start := time.Now()
	suggestion, err := e.advisor.Consult(cctx, rec, results)
	latency := time.Since(start)

	if err != nil {
		metrics.ObserveAdvisorCall(e.advisor.Name(), false, int(latency/time.Millisecond))
		consultation.RawResponse = err.Error()
		logging.With(ctx, e.log).Warn().Err(err).Msg("advisor unavailable, proceeding without suggestion")
		return consultation
	}

	metrics.ObserveAdvisorCall(e.advisor.Name(), true, int(latency/time.Millisecond))
	consultation.Available = true
	consultation.RawResponse = suggestion.Raw
	consultation.Label = suggestion.Label
	consultation.Rationale = suggestion.Rationale
	consultation.Confidence = suggestion.Confidence
	return consultation
}

// decisionID is stable for a given record revision and rule set version so
// repeated attempts produce the same decision identity.
func decisionID(rec *model.Record, ruleSetVersion string) string {
	seed := rec.ID + "/" + strconv.Itoa(rec.Revision) + "/" + ruleSetVersion
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func consultSnapshot(rec *model.Record, results []model.RuleResult) string {
	type ruleView struct {
		Rule       string  `json:"rule"`
		Verdict    string  `json:"verdict"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	views := make([]ruleView, 0, len(results))
	for _, r := range results {
		views = append(views, ruleView{
			Rule:       r.RuleName,
			Verdict:    string(r.Verdict),
			Confidence: r.Confidence,
			Reason:     r.Reason,
		})
	}
	b, _ := json.Marshal(struct {
		RecordID string            `json:"record_id"`
		Source   string            `json:"source"`
		Payload  map[string]string `json:"payload"`
		Rules    []ruleView        `json:"rules"`
	}{rec.ID, rec.Source, rec.Payload, views})
	return string(b)
}

func ruleAppliedEntry(rec *model.Record, attempt int, r model.RuleResult) *model.LogEntry {
	return &model.LogEntry{
		RecordID: rec.ID,
		Event:    model.LogEventRuleApplied,
		RuleName: r.RuleName,
		Fields: map[string]string{
			model.FieldVerdict:    string(r.Verdict),
			model.FieldConfidence: formatFloat(r.Confidence),
			model.FieldWeight:     formatFloat(r.Weight),
			model.FieldBlocking:   strconv.FormatBool(r.Blocking),
			model.FieldReason:     r.Reason,
			model.FieldAttempt:    strconv.Itoa(attempt),
		},
		At: time.Now().UTC(),
	}
}

func finalizedEntry(d *model.Decision, attempt int) *model.LogEntry {
	fields := map[string]string{
		model.FieldVerdict:    string(d.Verdict),
		model.FieldConfidence: formatFloat(d.Confidence),
		model.FieldEscalated:  strconv.FormatBool(d.Escalated),
		model.FieldRuleSet:    d.RuleSetVersion,
		model.FieldAttempt:    strconv.Itoa(attempt),
	}
	if d.Consultation != nil {
		fields[model.FieldAdvisor] = strconv.FormatBool(d.Consultation.Available)
	}
	return &model.LogEntry{
		RecordID: d.RecordID,
		Event:    model.LogEventFinalized,
		Fields:   fields,
		At:       d.DecidedAt,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
