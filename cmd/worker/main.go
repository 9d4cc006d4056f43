// Package main is the entry point for the shiftplane worker.
// The worker drains the run queue: it resumes runs whose synchronous
// attempt crashed, timed out or was scheduled for a retry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shiftplane/internal/archive"
	"shiftplane/internal/config"
	"shiftplane/internal/logger"
	"shiftplane/internal/observability"
	"shiftplane/internal/orchestrator"
	"shiftplane/internal/solver"
	"shiftplane/internal/store/postgres"
	"shiftplane/internal/worker"

	"github.com/google/uuid"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: none, environment only)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	log := logger.New(level)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := postgres.New(ctx, cfg.DatabaseURL,
		postgres.WithQueuePolicy(cfg.RunMaxAttempts, cfg.RunVisibilityTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer store.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "shiftplane-worker", cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn("failed to shutdown metrics", "error", err)
		}
	}()
	if err := observability.RegisterQueueDepth(store); err != nil {
		log.Warn("failed to register queue depth metric", "error", err)
	}

	client, err := solver.NewClient(cfg.SolverURL, cfg.SolverTimeout)
	if err != nil {
		return fmt.Errorf("failed to create solver client: %w", err)
	}
	var opts []orchestrator.Option
	if cfg.ArchiveEndpoint != "" {
		arc, err := archive.NewMinIO(archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive: %w", err)
		}
		opts = append(opts, orchestrator.WithArchive(arc))
	}
	orch, err := orchestrator.New(store, client, log, orchestrator.Config{
		FailureMarkers:    cfg.RunFailureMarkers,
		VisibilityTimeout: cfg.RunVisibilityTimeout,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	agentID := cfg.WorkerID
	if agentID == "" {
		agentID = uuid.NewString()
	}
	agent := worker.New(store, orch, worker.AgentConfig{
		ID:                  agentID,
		Concurrency:         cfg.WorkerConcurrency,
		PollInterval:        cfg.WorkerPollInterval,
		MaxBackoff:          cfg.WorkerMaxBackoff,
		HeartbeatInterval:   cfg.WorkerHeartbeatInterval,
		VisibilityExtension: cfg.WorkerVisibilityExtension,
		RunTimeout:          cfg.RunTimeout,
	}, log)

	log.Info("worker started", "agent_id", agentID, "concurrency", cfg.WorkerConcurrency)
	go agent.Run(ctx)

	// Dedicated metrics server
	metricsAddr := fmt.Sprintf(":%d", cfg.WorkerMetricsPort)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Info("worker metrics listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker, draining in-flight runs")
	cancel()

	<-agent.Done()
	return nil
}
