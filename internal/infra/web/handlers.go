package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	portuc "ingestion-pipeline/internal/domain/ports/usecase"
	"ingestion-pipeline/internal/infra/logging"
)

type submitRequest struct {
	RecordID string            `json:"record_id,omitempty"`
	Source   string            `json:"source"`
	Payload  map[string]string `json:"payload"`
}

type submitResponse struct {
	RecordID string `json:"record_id"`
	Revision int    `json:"revision"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
}

type ruleResultDTO struct {
	RuleName   string  `json:"rule_name"`
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
	Blocking   bool    `json:"blocking"`
	Reason     string  `json:"reason,omitempty"`
}

type consultationDTO struct {
	Label       string    `json:"label"`
	Rationale   string    `json:"rationale"`
	Confidence  float64   `json:"confidence"`
	Available   bool      `json:"available"`
	Accepted    bool      `json:"accepted"`
	AcceptedBy  string    `json:"accepted_by,omitempty"`
	ConsultedAt time.Time `json:"consulted_at"`
}

type decisionResponse struct {
	ID             string           `json:"id"`
	RecordID       string           `json:"record_id"`
	RecordRevision int              `json:"record_revision"`
	RuleSetVersion string           `json:"rule_set_version"`
	Verdict        string           `json:"verdict"`
	Confidence     float64          `json:"confidence"`
	Escalated      bool             `json:"escalated"`
	Results        []ruleResultDTO  `json:"results"`
	Consultation   *consultationDTO `json:"consultation,omitempty"`
	DecidedAt      time.Time        `json:"decided_at"`
}

type logEntryDTO struct {
	Seq      int64             `json:"seq"`
	Event    string            `json:"event"`
	RuleName string            `json:"rule_name,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	At       time.Time         `json:"at"`
}

type jobDTO struct {
	ID              string     `json:"id"`
	RecordID        string     `json:"record_id"`
	RecordRevision  int        `json:"record_revision"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	NextAttemptAt   *time.Time `json:"next_attempt_at,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	LastError       string     `json:"last_error,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Source == "" {
			req.Source = r.Header.Get("X-Source")
		}

		receipt, err := s.ingestion.Submit(ctx, portuc.SubmitInput{
			RecordID: req.RecordID,
			Source:   req.Source,
			Payload:  req.Payload,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logging.With(r.Context(), s.log).Error().Err(err).Msg("submit failed")
			http.Error(w, "Failed to submit record", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusAccepted, submitResponse{
			RecordID: receipt.RecordID,
			Revision: receipt.Revision,
			JobID:    receipt.JobID,
			Status:   "queued",
		})
	}
}

func (s *Server) decisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Record ID is required", http.StatusBadRequest)
			return
		}

		dec, err := s.ingestion.GetDecision(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logging.With(r.Context(), s.log).Error().Err(err).Str("record_id", id).Msg("decision lookup failed")
			http.Error(w, "Failed to get decision", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toDecisionResponse(dec))
	}
}

func (s *Server) logHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Record ID is required", http.StatusBadRequest)
			return
		}

		entries, err := s.ingestion.GetLog(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logging.With(r.Context(), s.log).Error().Err(err).Str("record_id", id).Msg("log lookup failed")
			http.Error(w, "Failed to get log", http.StatusInternalServerError)
			return
		}

		out := make([]logEntryDTO, 0, len(entries))
		for _, e := range entries {
			out = append(out, logEntryDTO{
				Seq:      e.Seq,
				Event:    string(e.Event),
				RuleName: e.RuleName,
				Fields:   e.Fields,
				At:       e.At,
			})
		}

		response := struct {
			RecordID string        `json:"record_id"`
			Entries  []logEntryDTO `json:"entries"`
		}{RecordID: id, Entries: out}

		writeJSON(w, http.StatusOK, response)
	}
}

// failedJobsHandler lists terminally failed jobs for operator triage.
// Accepts a 'limit' query parameter.
func (s *Server) failedJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}

		jobs, err := s.jobs.ListTerminalFailures(ctx, limit)
		if err != nil {
			logging.With(r.Context(), s.log).Error().Err(err).Msg("failed-jobs listing failed")
			http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
			return
		}

		out := make([]jobDTO, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, toJobDTO(j))
		}

		response := struct {
			Data  []jobDTO `json:"data"`
			Limit int      `json:"limit"`
		}{Data: out, Limit: limit}

		writeJSON(w, http.StatusOK, response)
	}
}

func (s *Server) requeueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		if err := s.jobs.Requeue(ctx, id); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				logging.With(r.Context(), s.log).Error().Err(err).Str("job_id", id).Msg("requeue failed")
				http.Error(w, "Failed to requeue job", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"job_id": id, "status": "pending"})
	}
}

func (s *Server) cancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		if err := s.jobs.Cancel(ctx, id); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				logging.With(r.Context(), s.log).Error().Err(err).Str("job_id", id).Msg("cancel failed")
				http.Error(w, "Failed to cancel job", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"job_id": id, "status": "cancel_requested"})
	}
}

func toDecisionResponse(dec *model.Decision) decisionResponse {
	out := decisionResponse{
		ID:             dec.ID,
		RecordID:       dec.RecordID,
		RecordRevision: dec.RecordRevision,
		RuleSetVersion: dec.RuleSetVersion,
		Verdict:        string(dec.Verdict),
		Confidence:     dec.Confidence,
		Escalated:      dec.Escalated,
		DecidedAt:      dec.DecidedAt,
	}
	for _, res := range dec.Results {
		out.Results = append(out.Results, ruleResultDTO{
			RuleName:   res.RuleName,
			Verdict:    string(res.Verdict),
			Confidence: res.Confidence,
			Weight:     res.Weight,
			Blocking:   res.Blocking,
			Reason:     res.Reason,
		})
	}
	if c := dec.Consultation; c != nil {
		out.Consultation = &consultationDTO{
			Label:       c.Label,
			Rationale:   c.Rationale,
			Confidence:  c.Confidence,
			Available:   c.Available,
			Accepted:    c.Accepted,
			AcceptedBy:  c.AcceptedBy,
			ConsultedAt: c.ConsultedAt,
		}
	}
	return out
}

func toJobDTO(j *model.Job) jobDTO {
	dto := jobDTO{
		ID:              j.ID,
		RecordID:        j.RecordID,
		RecordRevision:  j.RecordRevision,
		Status:          string(j.Status),
		Attempts:        j.Attempts,
		MaxAttempts:     j.MaxAttempts,
		CancelRequested: j.CancelRequested,
		LastError:       j.LastError,
		UpdatedAt:       j.UpdatedAt,
	}
	if !j.NextAttemptAt.IsZero() {
		t := j.NextAttemptAt
		dto.NextAttemptAt = &t
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
