// Package main provides the entry point for the OncoBrief HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oncobrief/oncobrief/internal/config"
	"github.com/oncobrief/oncobrief/internal/database"
	"github.com/oncobrief/oncobrief/internal/digest"
	"github.com/oncobrief/oncobrief/internal/email"
	"github.com/oncobrief/oncobrief/internal/observability"
	"github.com/oncobrief/oncobrief/internal/podcast"
	"github.com/oncobrief/oncobrief/internal/pubmed"
	"github.com/oncobrief/oncobrief/internal/repository"
	"github.com/oncobrief/oncobrief/internal/scheduler"
	httpserver "github.com/oncobrief/oncobrief/internal/server/http"
	"github.com/oncobrief/oncobrief/internal/summarize"
	"github.com/oncobrief/oncobrief/internal/topic"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("oncobrief server starting")

	metrics := observability.NewMetrics("oncobrief")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Select the persistence backend.
	var (
		repos  *repository.Repositories
		health httpserver.HealthChecker
	)
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			if err := migrator.Up(); err != nil {
				migrator.Close()
				return fmt.Errorf("run migrations: %w", err)
			}
			if err := migrator.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close migrator")
			}
		}

		repos = repository.NewPostgres(db)
		health = db

	case config.StorageMemory:
		logger.Warn().Msg("using in-memory storage, all data is lost on restart")
		repos = repository.NewMemory()
	}

	// External clients.
	pubmedClient := pubmed.New(pubmed.Config{
		BaseURL:    cfg.PubMed.BaseURL,
		APIKey:     cfg.PubMed.APIKey,
		Timeout:    cfg.PubMed.Timeout,
		RateLimit:  cfg.PubMed.RateLimit,
		MaxResults: cfg.PubMed.MaxResults,
		Metrics:    metrics,
	})

	geminiClient := summarize.NewClient(summarize.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		BaseURL:     cfg.Gemini.BaseURL,
		Timeout:     cfg.Gemini.Timeout,
		MaxRetries:  cfg.Gemini.MaxRetries,
		Temperature: cfg.Gemini.Temperature,
		Metrics:     metrics,
	})

	// Core services.
	assembler := digest.NewAssembler(pubmedClient, geminiClient, repos, cfg.Digest, logger, metrics)
	explorer := topic.NewExplorer(pubmedClient, geminiClient, logger, metrics)

	var podcasts httpserver.PodcastGenerator
	if cfg.Polly.Enabled {
		synthesizer, err := podcast.NewSynthesizer(ctx, cfg.Polly.Region)
		if err != nil {
			return fmt.Errorf("create polly client: %w", err)
		}
		podcasts = podcast.NewGenerator(synthesizer, cfg.Polly, logger, metrics)
		logger.Info().Str("voice", cfg.Polly.VoiceID).Msg("podcast synthesis enabled")
	}

	var emails httpserver.EmailSender
	if cfg.Email.Enabled {
		sender, err := email.NewSender(cfg.Email, logger, metrics)
		if err != nil {
			return fmt.Errorf("create email sender: %w", err)
		}
		emails = sender
		logger.Info().Str("host", cfg.Email.Host).Msg("email delivery enabled")
	}

	// HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		EnvReport:       envReport(cfg),
	}
	if cfg.Polly.Enabled {
		httpCfg.PodcastDir = cfg.Polly.OutputDir
		httpCfg.PodcastPath = cfg.Polly.PublicPath
	}

	httpSrv := httpserver.NewServer(httpCfg, assembler, explorer, podcasts, emails, repos, health, logger)

	// Weekly digest scheduler.
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(cfg.Scheduler.Spec, assembler, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// Prometheus metrics on a separate port.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: 30 * time.Second,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", httpCfg.Address).Msg("HTTP REST API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Wait for a shutdown signal or a server failure.
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// envReport builds the masked configuration report served by the
// diagnostics endpoint. Secrets never appear in full.
func envReport(cfg *config.Config) map[string]string {
	return map[string]string{
		"STORAGE_BACKEND":   cfg.Storage.Backend,
		"PUBMED_API_KEY":    maskSecret(cfg.PubMed.APIKey),
		"GEMINI_API_KEY":    maskSecret(cfg.Gemini.APIKey),
		"GEMINI_MODEL":      cfg.Gemini.Model,
		"POLLY_ENABLED":     fmt.Sprintf("%t", cfg.Polly.Enabled),
		"POLLY_VOICE_ID":    cfg.Polly.VoiceID,
		"EMAIL_ENABLED":     fmt.Sprintf("%t", cfg.Email.Enabled),
		"EMAIL_HOST":        cfg.Email.Host,
		"EMAIL_PORT":        fmt.Sprintf("%d", cfg.Email.Port),
		"EMAIL_USER":        cfg.Email.Username,
		"EMAIL_PASSWORD":    maskSecret(cfg.Email.Password),
		"EMAIL_FROM":        cfg.Email.From,
		"SCHEDULER_ENABLED": fmt.Sprintf("%t", cfg.Scheduler.Enabled),
	}
}

// maskSecret hides all but the last four characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return "not set"
	}
	if len(s) <= 4 {
		return "set (masked)"
	}
	return "****" + s[len(s)-4:]
}
