package redis

import (
	"context"
	"encoding/json"
	"time"

	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
)

var _ repository.DecisionRepository = (*DecisionCache)(nil)

// DecisionCache is a read-through cache in front of the decision store.
// Writes go to the inner repository first. A save outside a transaction
// refreshes the cached copy; a save inside one only invalidates the key, so
// readers never see a decision the store does not have.
type DecisionCache struct {
	inner repository.DecisionRepository
	cli   RedisClient
	ttl   time.Duration
}

func NewDecisionCache(inner repository.DecisionRepository, cli RedisClient, ttl time.Duration) *DecisionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DecisionCache{inner: inner, cli: cli, ttl: ttl}
}

func decisionKey(recordID string) string { return "decision:" + recordID }

func (c *DecisionCache) Save(ctx context.Context, tx repository.Tx, d *model.Decision) error {
	if err := c.inner.Save(ctx, tx, d); err != nil {
		return err
	}
	if tx != nil {
		// The surrounding transaction can still roll back, so the new
		// decision must not be visible from the cache yet. Drop any cached
		// copy and let the read path repopulate from the store.
		_ = c.cli.Del(ctx, decisionKey(d.RecordID))
		return nil
	}
	if b, err := json.Marshal(d); err == nil {
		// Cache errors are not decision errors.
		_ = c.cli.Set(ctx, decisionKey(d.RecordID), string(b), c.ttl)
	}
	return nil
}

func (c *DecisionCache) FindLatest(ctx context.Context, recordID string) (*model.Decision, error) {
	raw, err := c.cli.Get(ctx, decisionKey(recordID))
	switch {
	case err == nil:
		var d model.Decision
		if json.Unmarshal([]byte(raw), &d) == nil {
			return &d, nil
		}
		_ = c.cli.Del(ctx, decisionKey(recordID))
	case !IsMiss(err):
		// Transport error, not a miss: read through and skip the backfill
		// write, the cache is unreachable anyway.
		return c.inner.FindLatest(ctx, recordID)
	}

	d, err := c.inner.FindLatest(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(d); err == nil {
		_ = c.cli.Set(ctx, decisionKey(recordID), string(b), c.ttl)
	}
	return d, nil
}
