// Package main is the entry point for the shiftplane controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftplane/internal/archive"
	"shiftplane/internal/config"
	"shiftplane/internal/controller"
	"shiftplane/internal/controller/handlers"
	"shiftplane/internal/logger"
	"shiftplane/internal/observability"
	"shiftplane/internal/orchestrator"
	"shiftplane/internal/solver"
	"shiftplane/internal/store/postgres"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: none, environment only)")
	flag.Parse()

	if err := run(*configPath, *migrateFlag); err != nil {
		slog.Error("controller failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, migrate bool) error {
	// Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	log := logger.New(level)
	slog.SetDefault(log)

	ctx := context.Background()

	// Connect to Postgres (the "Store")
	store, err := postgres.New(ctx, cfg.DatabaseURL,
		postgres.WithQueuePolicy(cfg.RunMaxAttempts, cfg.RunVisibilityTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer store.Close()

	// Run migrations if requested
	if migrate {
		log.Info("running database migrations")
		version, err := postgres.Migrate(store.DB())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations completed", "version", version)
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "shiftplane-controller", cfg.OTELEndpoint)
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

	orch, err := newOrchestrator(cfg, store, log)
	if err != nil {
		return err
	}

	h := handlers.New(store, orch,
		handlers.WithLogger(log),
		handlers.WithIngestURL(cfg.IngestURL),
	)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, h, controller.Options{
		InternalSecret: cfg.InternalSecret,
		RunRateLimit:   cfg.RunRateLimit,
		RunRateBurst:   cfg.RunRateBurst,
		WriteTimeout:   cfg.SolverTimeout + 30*time.Second,
		Metrics:        metricsHandler,
		Logger:         log,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("shiftplane controller starting",
			"addr", addr,
			"public_url", cfg.PublicURL,
			"solver_url", cfg.SolverURL,
			"ingest_auth", cfg.InternalSecret != "",
		)
		serverErr <- srv.Run(ctx)
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server stopped: %w", err)
	}

	log.Info("shutting down controller")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SolverTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited properly")
	return nil
}

// newOrchestrator wires the solver client and the optional response archive.
func newOrchestrator(cfg *config.Config, store *postgres.Store, log *slog.Logger) (*orchestrator.Orchestrator, error) {
	client, err := solver.NewClient(cfg.SolverURL, cfg.SolverTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create solver client: %w", err)
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
			return nil, fmt.Errorf("failed to create archive: %w", err)
		}
		opts = append(opts, orchestrator.WithArchive(arc))
		log.Info("archiving solver responses", "endpoint", cfg.ArchiveEndpoint, "bucket", cfg.ArchiveBucket)
	}

	orch, err := orchestrator.New(store, client, log, orchestrator.Config{
		FailureMarkers:    cfg.RunFailureMarkers,
		VisibilityTimeout: cfg.RunVisibilityTimeout,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, nil
}
