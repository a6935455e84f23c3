package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
)

var _ repository.RecordRepository = (*recordRepo)(nil)

type recordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *recordRepo {
	return &recordRepo{pool: pool}
}

func (r *recordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.Record) error {
	if rec.ID == "" || rec.Revision <= 0 {
		return domain.ErrInvalidArgument
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}

	// Plain INSERT: revisions are immutable, conflicts are bugs upstream.
	const q = `
INSERT INTO records (id, revision, payload, source, received_at)
VALUES ($1, $2, $3, $4, $5);`

	_, err = execSQL(ctx, r.pool, tx, q, rec.ID, rec.Revision, payload, rec.Source, rec.ReceivedAt)
	return err
}

func (r *recordRepo) FindLatest(ctx context.Context, tx repository.Tx, id string) (*model.Record, error) {
	const q = `
SELECT id, revision, payload, source, received_at
FROM records
WHERE id = $1
ORDER BY revision DESC
LIMIT 1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *recordRepo) FindRevision(ctx context.Context, tx repository.Tx, id string, revision int) (*model.Record, error) {
	const q = `
SELECT id, revision, payload, source, received_at
FROM records
WHERE id = $1 AND revision = $2;`
	return r.scanOne(ctx, tx, q, id, revision)
}

func (r *recordRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Record, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var rec model.Record
	var payload []byte
	if err := row.Scan(&rec.ID, &rec.Revision, &payload, &rec.Source, &rec.ReceivedAt); err != nil {
		return nil, scanErr(err)
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &rec, nil
}
