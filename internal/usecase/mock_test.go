//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
	"ingestion-pipeline/internal/domain/ports/repository"
)

// =============================
// In-memory repositories
// =============================

type MockRecordRepo struct {
	mu    sync.Mutex
	store map[string][]*model.Record // id -> revisions, ascending

	SaveFunc func(ctx context.Context, tx repository.Tx, rec *model.Record) error
}

func NewMockRecordRepo() *MockRecordRepo {
	return &MockRecordRepo{store: map[string][]*model.Record{}}
}

var _ repository.RecordRepository = (*MockRecordRepo)(nil)

func (m *MockRecordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.Record) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.store[rec.ID] = append(m.store[rec.ID], &cp)
	return nil
}

func (m *MockRecordRepo) FindLatest(ctx context.Context, tx repository.Tx, id string) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revs := m.store[id]
	if len(revs) == 0 {
		return nil, domain.ErrNotFound
	}
	cp := *revs[len(revs)-1]
	return &cp, nil
}

func (m *MockRecordRepo) FindRevision(ctx context.Context, tx repository.Tx, id string, revision int) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.store[id] {
		if r.Revision == revision {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type MockDecisionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Decision

	SaveFunc func(ctx context.Context, tx repository.Tx, d *model.Decision) error
	Saves    int
}

func NewMockDecisionRepo() *MockDecisionRepo {
	return &MockDecisionRepo{store: map[string]*model.Decision{}}
}

var _ repository.DecisionRepository = (*MockDecisionRepo)(nil)

func (m *MockDecisionRepo) Save(ctx context.Context, tx repository.Tx, d *model.Decision) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.store[d.RecordID] = &cp
	m.Saves++
	return nil
}

func (m *MockDecisionRepo) FindLatest(ctx context.Context, recordID string) (*model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[recordID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// MockIngestionLog assigns sequence numbers the way the Postgres log does:
// monotonically per record, starting at 1.
type MockIngestionLog struct {
	mu      sync.Mutex
	entries map[string][]model.LogEntry

	AppendFunc func(ctx context.Context, tx repository.Tx, entry *model.LogEntry) error
}

func NewMockIngestionLog() *MockIngestionLog {
	return &MockIngestionLog{entries: map[string][]model.LogEntry{}}
}

var _ repository.IngestionLog = (*MockIngestionLog)(nil)

func (m *MockIngestionLog) Append(ctx context.Context, tx repository.Tx, entry *model.LogEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	cp.Seq = int64(len(m.entries[entry.RecordID]) + 1)
	if cp.Fields != nil {
		fields := make(map[string]string, len(cp.Fields))
		for k, v := range cp.Fields {
			fields[k] = v
		}
		cp.Fields = fields
	}
	m.entries[entry.RecordID] = append(m.entries[entry.RecordID], cp)
	entry.Seq = cp.Seq
	return nil
}

func (m *MockIngestionLog) ReadAll(ctx context.Context, recordID string) ([]model.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LogEntry, len(m.entries[recordID]))
	copy(out, m.entries[recordID])
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Events lists the event names appended for a record, in order.
func (m *MockIngestionLog) Events(recordID string) []model.LogEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LogEvent
	for _, e := range m.entries[recordID] {
		out = append(out, e.Event)
	}
	return out
}

type MockJobQueue struct {
	mu    sync.Mutex
	store map[string]*model.Job

	EnqueueFunc func(ctx context.Context, tx repository.Tx, job *model.Job) error
}

func NewMockJobQueue() *MockJobQueue {
	return &MockJobQueue{store: map[string]*model.Job{}}
}

var _ repository.JobQueue = (*MockJobQueue)(nil)

func (m *MockJobQueue) Enqueue(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *MockJobQueue) Acquire(ctx context.Context, leaseTTL time.Duration) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (m *MockJobQueue) Complete(ctx context.Context, jobID, leaseToken string) error { return nil }

func (m *MockJobQueue) Fail(ctx context.Context, jobID, leaseToken, reason string, retryable bool) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (m *MockJobQueue) Cancel(ctx context.Context, jobID string) error { return nil }

func (m *MockJobQueue) MarkCancelled(ctx context.Context, jobID, tok string) error { return nil }

func (m *MockJobQueue) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	return false, nil
}

func (m *MockJobQueue) FindByID(ctx context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobQueue) ListTerminalFailures(ctx context.Context, limit int) ([]*model.Job, error) {
	return nil, nil
}

func (m *MockJobQueue) Requeue(ctx context.Context, jobID string) error { return nil }

func (m *MockJobQueue) CountPending(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.store {
		if j.Status == model.JobStatusPending {
			n++
		}
	}
	return n, nil
}

func (m *MockJobQueue) ReapExpired(ctx context.Context) (int, error) { return 0, nil }

// =============================
// Transaction manager
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately without a real transaction by default. Tests
// that care about transactional behavior assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Advisor
// =============================

type MockAdvisor struct {
	mu         sync.Mutex
	Suggestion adapter.Suggestion
	Err        error
	Delay      time.Duration
	Calls      int
}

var _ adapter.AIAdvisor = (*MockAdvisor)(nil)

func (m *MockAdvisor) Name() string { return "mock" }

func (m *MockAdvisor) Consult(ctx context.Context, rec *model.Record, results []model.RuleResult) (adapter.Suggestion, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return adapter.Suggestion{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return adapter.Suggestion{}, m.Err
	}
	return m.Suggestion, nil
}

func (m *MockAdvisor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
