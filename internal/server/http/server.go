// Package httpserver provides the HTTP REST API for the OncoBrief service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncobrief/oncobrief/internal/database"
	"github.com/oncobrief/oncobrief/internal/digest"
	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/repository"
	"github.com/oncobrief/oncobrief/internal/topic"
)

// DigestGenerator runs the digest pipeline.
type DigestGenerator interface {
	Generate(ctx context.Context, req digest.Request) (*digest.Result, error)
	RepairOrphans(ctx context.Context, digestID uuid.UUID) (int64, error)
}

// TopicExplorer runs ad-hoc topic searches.
type TopicExplorer interface {
	Explore(ctx context.Context, req topic.Request) (*topic.Result, error)
}

// PodcastGenerator synthesizes podcast episodes.
type PodcastGenerator interface {
	GenerateDigestPodcast(ctx context.Context, d *domain.Digest, articles []*domain.Article) (*domain.Podcast, error)
	GenerateResearchPodcast(ctx context.Context, topic string, summary *domain.TopicSummary) (*domain.Podcast, error)
}

// EmailSender delivers digest and diagnostic emails.
type EmailSender interface {
	SendDigest(ctx context.Context, to string, d *domain.Digest, articles []*domain.Article, podcast *domain.Podcast) error
	SendTest(ctx context.Context, to string) error
}

// HealthChecker reports storage backend health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// PodcastDir is served read-only under PodcastPath when non-empty.
	PodcastDir  string
	PodcastPath string

	// EnvReport is rendered by the diagnostics endpoint.
	EnvReport map[string]string
}

// Server is the HTTP REST API server. The podcast generator and email
// sender may be nil when the corresponding feature is disabled; their
// endpoints then answer 503.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	digests  DigestGenerator
	topics   TopicExplorer
	podcasts PodcastGenerator
	emails   EmailSender
	repos    *repository.Repositories
	health   HealthChecker

	cfg      Config
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewServer creates the HTTP server with all dependencies wired. health may
// be nil for the in-memory backend.
func NewServer(
	cfg Config,
	digests DigestGenerator,
	topics TopicExplorer,
	podcasts PodcastGenerator,
	emails EmailSender,
	repos *repository.Repositories,
	health HealthChecker,
	logger zerolog.Logger,
) *Server {
	// Validation errors report JSON field names, not Go field names.
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		digests:  digests,
		topics:   topics,
		podcasts: podcasts,
		emails:   emails,
		repos:    repos,
		health:   health,
		cfg:      cfg,
		logger:   logger.With().Str("component", "http-server").Logger(),
		validate: validate,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router exposes the assembled router, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/generateDigest", s.generateDigest)
		r.Post("/topicSearch", s.topicSearch)
		r.Post("/generatePodcast", s.generatePodcast)
		r.Post("/generateResearchPodcast", s.generateResearchPodcast)
		r.Post("/sendEmail", s.sendEmail)

		r.Get("/test-email", s.testEmail)
		r.Get("/test-env", s.testEnv)

		r.Get("/journals", s.listJournals)
		r.Post("/journals", s.addJournal)
		r.Delete("/journals/{journalID}", s.removeJournal)

		r.Get("/articles", s.listArticles)

		r.Get("/digests", s.listDigests)
		r.Get("/digests/{digestID}", s.getDigest)
		r.Get("/digests/{digestID}/articles", s.getDigestArticles)
		r.Get("/digests/{digestID}/podcast", s.getDigestPodcast)
		r.Post("/digests/{digestID}/repair", s.repairDigest)
	})

	// Synthesized audio and transcripts.
	if s.cfg.PodcastDir != "" && s.cfg.PodcastPath != "" {
		fileServer := http.StripPrefix(s.cfg.PodcastPath, http.FileServer(http.Dir(s.cfg.PodcastDir)))
		r.Get(s.cfg.PodcastPath+"/*", fileServer.ServeHTTP)
	}

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness, including storage connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}
