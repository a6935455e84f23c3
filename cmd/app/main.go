// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ingestion-pipeline/internal/config"
	"ingestion-pipeline/internal/domain/ports/adapter"
	"ingestion-pipeline/internal/domain/rules"
	aiAdapters "ingestion-pipeline/internal/infra/adapters/ai"
	pg "ingestion-pipeline/internal/infra/db/postgres"
	"ingestion-pipeline/internal/infra/logging"
	"ingestion-pipeline/internal/infra/metrics"
	red "ingestion-pipeline/internal/infra/redis"
	"ingestion-pipeline/internal/infra/web"
	"ingestion-pipeline/internal/infra/worker"
	"ingestion-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	recordRepo := pg.NewRecordRepo(pool)
	decisionRepo := red.NewDecisionCache(pg.NewDecisionRepo(pool), redisClient, cfg.Redis.TTL)
	auditLog := pg.NewIngestionLog(pool)
	queue := pg.NewJobQueue(pool, tm, cfg.Queue.BackoffBase, cfg.Queue.BackoffCap)

	// ---- Rule set ----
	specs := make([]rules.Spec, 0, len(cfg.Policy.Rules))
	for _, r := range cfg.Policy.Rules {
		specs = append(specs, rules.Spec{
			Name:     r.Name,
			Weight:   r.Weight,
			Blocking: r.Blocking,
			Params:   r.Params,
		})
	}
	ruleSet, err := rules.Build(cfg.Policy.RuleSetVersion, specs)
	if err != nil {
		logger.Fatal().Err(err).Msg("rule set")
	}
	logger.Info().Str("version", ruleSet.Version).Int("rules", len(specs)).Msg("rule set loaded")

	// ---- AI advisor (OpenAI -> Gemini -> noop) ----
	var advisors []adapter.AIAdvisor
	if cfg.AI.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdvisor(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai advisor")
		}
		advisors = append(advisors, a)
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("advisor: OpenAI")
	}
	if cfg.AI.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdvisor(ctx, cfg.AI.GeminiKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini advisor")
		}
		advisors = append(advisors, a)
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("advisor: Gemini")
	}
	if len(advisors) == 0 {
		// The advisor is consultative: running without a real provider is
		// allowed, decisions just never get an AI suggestion.
		advisors = append(advisors, aiAdapters.NewNoopAdvisor())
		logger.Warn().Msg("no AI provider configured, using noop advisor")
	}
	advisor := aiAdapters.NewLimitedAdvisor(aiAdapters.NewMultiAdvisor(advisors...), cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	policy := usecase.ConfidencePolicy{Threshold: cfg.Policy.Threshold}
	engine := usecase.NewDecisionEngine(ruleSet, policy, advisor, decisionRepo, auditLog, tm, cfg.AI.Timeout, logger)
	ingestUC := usecase.NewIngestionUseCase(recordRepo, decisionRepo, auditLog, queue, tm, cfg.Queue.MaxAttempts, logger)

	// ---- Workers ----
	wp := worker.NewPool(cfg.Queue.Workers, logger)
	wp.Start(ctx)
	processor := worker.NewJobProcessor(queue, recordRepo, engine, auditLog, cfg.Queue.PollInterval, cfg.Queue.LeaseTTL, logger)
	go processor.Start(ctx, wp)
	reaper := worker.NewLeaseReaper(queue, cfg.Queue.ReapInterval, logger)
	reaper.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.AdminSecret, !cfg.Runtime.Dev, time.Duration(cfg.Server.AdminSessionTTLMin)*time.Minute)
	srv := web.NewServer(ingestUC, queue, auth, rateLimiter, cfg.Server.SubmitRatePerMin, cfg.Server.AdminSecret, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	reaper.Stop()
	wp.Stop()
	logger.Info().Msg("stopped")
}
