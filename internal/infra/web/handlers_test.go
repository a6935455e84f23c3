//go:build !integration

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/repository"
	portuc "ingestion-pipeline/internal/domain/ports/usecase"
	"ingestion-pipeline/internal/infra/web"
)

// ---- fakes ----

type fakeIngestion struct {
	SubmitFunc      func(ctx context.Context, in portuc.SubmitInput) (*portuc.SubmitReceipt, error)
	GetDecisionFunc func(ctx context.Context, recordID string) (*model.Decision, error)
	GetLogFunc      func(ctx context.Context, recordID string) ([]model.LogEntry, error)
}

var _ portuc.IngestionService = (*fakeIngestion)(nil)

func (f *fakeIngestion) Submit(ctx context.Context, in portuc.SubmitInput) (*portuc.SubmitReceipt, error) {
	return f.SubmitFunc(ctx, in)
}

func (f *fakeIngestion) GetDecision(ctx context.Context, recordID string) (*model.Decision, error) {
	return f.GetDecisionFunc(ctx, recordID)
}

func (f *fakeIngestion) GetLog(ctx context.Context, recordID string) ([]model.LogEntry, error) {
	return f.GetLogFunc(ctx, recordID)
}

type fakeQueue struct {
	repository.JobQueue

	failures   []*model.Job
	requeued   []string
	cancelled  []string
	requeueErr error
	cancelErr  error
}

func (f *fakeQueue) ListTerminalFailures(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit < len(f.failures) {
		return f.failures[:limit], nil
	}
	return f.failures, nil
}

func (f *fakeQueue) Requeue(ctx context.Context, jobID string) error {
	if f.requeueErr != nil {
		return f.requeueErr
	}
	f.requeued = append(f.requeued, jobID)
	return nil
}

func (f *fakeQueue) Cancel(ctx context.Context, jobID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func newTestServer(ingestion portuc.IngestionService, queue repository.JobQueue) *web.Server {
	l := zerolog.New(io.Discard)
	auth := web.NewAuthManager("test-hmac-secret", false, 30*time.Minute)
	return web.NewServer(ingestion, queue, auth, nil, 0, "admin-secret", &l)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---- tests ----

func TestSubmitEndpoint(t *testing.T) {
	t.Run("accepted submission returns 202 with a receipt", func(t *testing.T) {
		ing := &fakeIngestion{
			SubmitFunc: func(ctx context.Context, in portuc.SubmitInput) (*portuc.SubmitReceipt, error) {
				if in.Source != "feed-a" {
					t.Errorf("expected source feed-a, got %q", in.Source)
				}
				return &portuc.SubmitReceipt{RecordID: "sku-1", Revision: 1, JobID: "job-1"}, nil
			},
		}
		router := newTestServer(ing, &fakeQueue{}).Router()

		rec := doJSON(t, router, http.MethodPost, "/api/v1/records", map[string]any{
			"source":  "feed-a",
			"payload": map[string]string{"article_name": "tea"},
		}, nil)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			RecordID string `json:"record_id"`
			Status   string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if resp.RecordID != "sku-1" || resp.Status != "queued" {
			t.Errorf("unexpected receipt: %+v", resp)
		}
	})

	t.Run("invalid payload maps to 400", func(t *testing.T) {
		ing := &fakeIngestion{
			SubmitFunc: func(ctx context.Context, in portuc.SubmitInput) (*portuc.SubmitReceipt, error) {
				return nil, domain.ErrInvalidArgument
			},
		}
		router := newTestServer(ing, &fakeQueue{}).Router()

		rec := doJSON(t, router, http.MethodPost, "/api/v1/records", map[string]any{"source": "feed-a"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed JSON body is 400", func(t *testing.T) {
		router := newTestServer(&fakeIngestion{}, &fakeQueue{}).Router()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records", bytes.NewBufferString("{nope"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestDecisionEndpoint(t *testing.T) {
	t.Run("returns the decision as JSON", func(t *testing.T) {
		ing := &fakeIngestion{
			GetDecisionFunc: func(ctx context.Context, recordID string) (*model.Decision, error) {
				return &model.Decision{
					ID:         "dec-1",
					RecordID:   recordID,
					Verdict:    model.VerdictAccepted,
					Confidence: 0.92,
					Results: []model.RuleResult{
						{RuleName: "required_fields", Verdict: model.RuleVerdictPass, Confidence: 1, Weight: 1},
					},
				}, nil
			},
		}
		router := newTestServer(ing, &fakeQueue{}).Router()

		rec := doJSON(t, router, http.MethodGet, "/api/v1/records/sku-1/decision", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Verdict string `json:"verdict"`
			Results []struct {
				RuleName string `json:"rule_name"`
			} `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if resp.Verdict != "accepted" || len(resp.Results) != 1 {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("unknown record is 404", func(t *testing.T) {
		ing := &fakeIngestion{
			GetDecisionFunc: func(ctx context.Context, recordID string) (*model.Decision, error) {
				return nil, domain.ErrNotFound
			},
		}
		router := newTestServer(ing, &fakeQueue{}).Router()

		rec := doJSON(t, router, http.MethodGet, "/api/v1/records/missing/decision", nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestLogEndpoint(t *testing.T) {
	ing := &fakeIngestion{
		GetLogFunc: func(ctx context.Context, recordID string) ([]model.LogEntry, error) {
			return []model.LogEntry{
				{RecordID: recordID, Seq: 1, Event: model.LogEventReceived},
				{RecordID: recordID, Seq: 2, Event: model.LogEventRuleApplied, RuleName: "price_sanity"},
			}, nil
		},
	}
	router := newTestServer(ing, &fakeQueue{}).Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/records/sku-1/log", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Entries []struct {
			Seq   int64  `json:"seq"`
			Event string `json:"event"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[1].Event != "rule_applied" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestAdminEndpoints(t *testing.T) {
	login := func(t *testing.T, router http.Handler) string {
		t.Helper()
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/login", nil,
			map[string]string{"X-Admin-Secret": "admin-secret"})
		if rec.Code != http.StatusOK {
			t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad login body: %v", err)
		}
		return resp.Token
	}

	t.Run("admin routes reject missing and bogus tokens", func(t *testing.T) {
		router := newTestServer(&fakeIngestion{}, &fakeQueue{}).Router()

		rec := doJSON(t, router, http.MethodGet, "/api/v1/admin/jobs/failed", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without token, got %d", rec.Code)
		}
		rec = doJSON(t, router, http.MethodGet, "/api/v1/admin/jobs/failed", nil,
			map[string]string{"Authorization": "Bearer not-a-jwt"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 with bogus token, got %d", rec.Code)
		}
	})

	t.Run("wrong login secret is 401", func(t *testing.T) {
		router := newTestServer(&fakeIngestion{}, &fakeQueue{}).Router()
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/login", nil,
			map[string]string{"X-Admin-Secret": "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("failed jobs listing", func(t *testing.T) {
		queue := &fakeQueue{failures: []*model.Job{
			{ID: "job-1", RecordID: "sku-1", Status: model.JobStatusFailedTerminal, Attempts: 5, LastError: "boom"},
		}}
		router := newTestServer(&fakeIngestion{}, queue).Router()
		token := login(t, router)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/admin/jobs/failed", nil,
			map[string]string{"Authorization": "Bearer " + token})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Data []struct {
				ID        string `json:"id"`
				LastError string `json:"last_error"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if len(resp.Data) != 1 || resp.Data[0].ID != "job-1" || resp.Data[0].LastError != "boom" {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("requeue and cancel hit the queue", func(t *testing.T) {
		queue := &fakeQueue{}
		router := newTestServer(&fakeIngestion{}, queue).Router()
		token := login(t, router)
		auth := map[string]string{"Authorization": "Bearer " + token}

		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/jobs/job-7/requeue", nil, auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("requeue: expected 200, got %d", rec.Code)
		}
		rec = doJSON(t, router, http.MethodPost, "/api/v1/admin/jobs/job-8/cancel", nil, auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("cancel: expected 200, got %d", rec.Code)
		}

		if len(queue.requeued) != 1 || queue.requeued[0] != "job-7" {
			t.Errorf("requeue not forwarded: %v", queue.requeued)
		}
		if len(queue.cancelled) != 1 || queue.cancelled[0] != "job-8" {
			t.Errorf("cancel not forwarded: %v", queue.cancelled)
		}
	})

	t.Run("requeue of a non-terminal job is 409", func(t *testing.T) {
		queue := &fakeQueue{requeueErr: domain.ErrInvalidArgument}
		router := newTestServer(&fakeIngestion{}, queue).Router()
		token := login(t, router)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/jobs/job-9/requeue", nil,
			map[string]string{"Authorization": "Bearer " + token})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHealthz(t *testing.T) {
	router := newTestServer(&fakeIngestion{}, &fakeQueue{}).Router()
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTraceHeader(t *testing.T) {
	router := newTestServer(&fakeIngestion{}, &fakeQueue{}).Router()

	t.Run("a trace id is minted when absent", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
		if rec.Header().Get("X-Trace-Id") == "" {
			t.Error("expected a generated X-Trace-Id header")
		}
	})

	t.Run("a caller-supplied trace id is kept", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/healthz", nil,
			map[string]string{"X-Trace-Id": "trace-42"})
		if got := rec.Header().Get("X-Trace-Id"); got != "trace-42" {
			t.Errorf("expected the supplied trace id back, got %q", got)
		}
	})
}
