package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
)

var _ repository.DecisionRepository = (*decisionRepo)(nil)

type decisionRepo struct {
	pool *pgxpool.Pool
}

func NewDecisionRepo(pool *pgxpool.Pool) *decisionRepo {
	return &decisionRepo{pool: pool}
}

// Save upserts keyed by record id: the latest decision wins, prior attempts
// stay reconstructable from the ingestion log.
func (r *decisionRepo) Save(ctx context.Context, tx repository.Tx, d *model.Decision) error {
	results, err := json.Marshal(d.Results)
	if err != nil {
		return err
	}
	var consultation []byte
	if d.Consultation != nil {
		if consultation, err = json.Marshal(d.Consultation); err != nil {
			return err
		}
	}

	const q = `
INSERT INTO decisions (record_id, id, record_revision, rule_set_version, results, confidence, escalated, consultation, verdict, decided_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (record_id) DO UPDATE SET
  id = EXCLUDED.id,
  record_revision = EXCLUDED.record_revision,
  rule_set_version = EXCLUDED.rule_set_version,
  results = EXCLUDED.results,
  confidence = EXCLUDED.confidence,
  escalated = EXCLUDED.escalated,
  consultation = EXCLUDED.consultation,
  verdict = EXCLUDED.verdict,
  decided_at = EXCLUDED.decided_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		d.RecordID, d.ID, d.RecordRevision, d.RuleSetVersion, results,
		d.Confidence, d.Escalated, consultation, string(d.Verdict), d.DecidedAt)
	return err
}

func (r *decisionRepo) FindLatest(ctx context.Context, recordID string) (*model.Decision, error) {
	const q = `
SELECT record_id, id, record_revision, rule_set_version, results, confidence, escalated, consultation, verdict, decided_at
FROM decisions
WHERE record_id = $1;`

	row, err := pickRow(ctx, r.pool, nil, q, recordID)
	if err != nil {
		return nil, err
	}
	var (
		d            model.Decision
		verdict      string
		results      []byte
		consultation []byte
	)
	if err := row.Scan(&d.RecordID, &d.ID, &d.RecordRevision, &d.RuleSetVersion,
		&results, &d.Confidence, &d.Escalated, &consultation, &verdict, &d.DecidedAt); err != nil {
		return nil, scanErr(err)
	}
	d.Verdict = model.Verdict(verdict)
	if err := json.Unmarshal(results, &d.Results); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if len(consultation) > 0 {
		d.Consultation = &model.AIConsultation{}
		if err := json.Unmarshal(consultation, d.Consultation); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &d, nil
}
