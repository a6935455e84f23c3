package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
)

var _ repository.IngestionLog = (*ingestionLog)(nil)

// ingestionLog is the append-only audit trail. Rows are only ever inserted;
// there is no update or delete path in this repo on purpose.
type ingestionLog struct {
	pool *pgxpool.Pool
}

func NewIngestionLog(pool *pgxpool.Pool) *ingestionLog {
	return &ingestionLog{pool: pool}
}

// Append assigns the next per-record sequence number inside the insert. Two
// racing appends for the same record can collide on the primary key; the
// loser's attempt fails and is retried as a whole job, which keeps the
// sequence gap-free without a lock on the read path.
func (l *ingestionLog) Append(ctx context.Context, tx repository.Tx, entry *model.LogEntry) error {
	if entry.RecordID == "" {
		return domain.ErrInvalidArgument
	}
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO ingestion_log (record_id, seq, event, rule_name, fields, at)
VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM ingestion_log WHERE record_id = $1), $2, $3, $4, $5)
RETURNING seq;`

	row, err := pickRow(ctx, l.pool, tx, q, entry.RecordID, string(entry.Event), entry.RuleName, fields, entry.At)
	if err != nil {
		return err
	}
	if err := row.Scan(&entry.Seq); err != nil {
		return domain.Transient(err)
	}
	return nil
}

func (l *ingestionLog) ReadAll(ctx context.Context, recordID string) ([]model.LogEntry, error) {
	const q = `
SELECT record_id, seq, event, rule_name, fields, at
FROM ingestion_log
WHERE record_id = $1
ORDER BY seq;`

	rows, err := pickRows(ctx, l.pool, nil, q, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e      model.LogEntry
			event  string
			fields []byte
		)
		if err := rows.Scan(&e.RecordID, &e.Seq, &event, &e.RuleName, &fields, &e.At); err != nil {
			return nil, scanErr(err)
		}
		e.Event = model.LogEvent(event)
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &e.Fields); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		entries = append(entries, e)
	}
	return entries, domain.Transient(rows.Err())
}
