package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	portuc "ingestion-pipeline/internal/domain/ports/usecase"
	"ingestion-pipeline/internal/domain/ports/repository"
	"ingestion-pipeline/internal/infra/logging"
	redisinfra "ingestion-pipeline/internal/infra/redis"
)

// Server exposes the ingestion API: record submission, decision and log
// reads, and a JWT-gated admin surface for the job queue.
type Server struct {
	ingestion   portuc.IngestionService
	jobs        repository.JobQueue
	auth        *AuthManager
	limiter     *redisinfra.RateLimiter
	submitRate  int
	adminSecret string
	log         *zerolog.Logger
}

func NewServer(
	ingestion portuc.IngestionService,
	jobs repository.JobQueue,
	auth *AuthManager,
	limiter *redisinfra.RateLimiter,
	submitRatePerMin int,
	adminSecret string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		ingestion:   ingestion,
		jobs:        jobs,
		auth:        auth,
		limiter:     limiter,
		submitRate:  submitRatePerMin,
		adminSecret: adminSecret,
		log:         logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.traceID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.submitRateLimit).Post("/records", s.submitHandler())
		r.Get("/records/{id}/decision", s.decisionHandler())
		r.Get("/records/{id}/log", s.logHandler())

		r.Post("/admin/login", s.loginHandler())
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/admin/jobs/failed", s.failedJobsHandler())
			r.Post("/admin/jobs/{id}/requeue", s.requeueHandler())
			r.Post("/admin/jobs/{id}/cancel", s.cancelHandler())
		})
	})

	return r
}

// traceID tags every request with a trace id that follows it through the
// logs. A caller-supplied X-Trace-Id is kept so ids line up across services.
func (s *Server) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Trace-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Trace-Id", id)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), id)))
	})
}

// submitRateLimit applies a fixed-window per-source cap to submissions.
// Limiter outages fail open; blocking ingest on Redis would be worse than
// letting a burst through.
func (s *Server) submitRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.submitRate <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		source := r.Header.Get("X-Source")
		if source == "" {
			source = r.RemoteAddr
		}
		ok, err := s.limiter.Allow(r.Context(), redisinfra.SubmitKey(source), s.submitRate, time.Minute)
		if err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too many submissions", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginHandler exchanges the shared admin secret for a session token.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminSecret == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		secret := r.Header.Get("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.adminSecret)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			logging.With(r.Context(), s.log).Error().Err(err).Msg("could not mint admin session")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}
