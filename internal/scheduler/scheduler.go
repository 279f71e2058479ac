// Package scheduler runs the weekly digest pipeline on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/oncobrief/oncobrief/internal/digest"
)

// runTimeout bounds a single scheduled pipeline run.
const runTimeout = 30 * time.Minute

// DigestGenerator runs the digest pipeline.
type DigestGenerator interface {
	Generate(ctx context.Context, req digest.Request) (*digest.Result, error)
}

// Scheduler triggers digest generation for the stored journal list on a
// cron schedule. The generated digest and its articles are persisted by
// the pipeline itself.
type Scheduler struct {
	cron    *cron.Cron
	digests DigestGenerator
	spec    string
	logger  zerolog.Logger
}

// New creates a scheduler with the given cron spec (standard 5-field
// format). Start must be called to begin scheduling.
func New(spec string, digests DigestGenerator, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		digests: digests,
		spec:    spec,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the digest job and starts the cron loop in its own
// goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("digest scheduler started")
	return nil
}

// Stop halts scheduling and waits for any in-flight run to finish, or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("digest scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one scheduled pipeline pass over the stored journal list
// with the default date window.
func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.digests.Generate(ctx, digest.Request{})
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled digest run failed")
		return
	}

	evt := s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("articles", len(result.Articles))
	if result.Persisted() {
		evt = evt.Str("digest_id", result.Digest.ID.String())
	}
	evt.Msg("scheduled digest run finished")
}
