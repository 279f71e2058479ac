package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// Compile-time interface verification.
var _ PodcastRepository = (*PgPodcastRepository)(nil)

// PgPodcastRepository is a PostgreSQL implementation of PodcastRepository.
type PgPodcastRepository struct {
	db DBTX
}

// NewPgPodcastRepository creates a new PostgreSQL podcast repository.
func NewPgPodcastRepository(db DBTX) *PgPodcastRepository {
	return &PgPodcastRepository{db: db}
}

// Upsert inserts or replaces the podcast for a digest. The digest_id unique
// constraint makes regeneration last-write-wins.
func (r *PgPodcastRepository) Upsert(ctx context.Context, podcast *domain.Podcast) error {
	if podcast.ID == uuid.Nil {
		podcast.ID = uuid.New()
	}
	now := time.Now().UTC()
	if podcast.CreatedAt.IsZero() {
		podcast.CreatedAt = now
	}
	podcast.UpdatedAt = now

	query := `
		INSERT INTO podcasts (id, digest_id, audio_url, script_url, script, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (digest_id) DO UPDATE SET
			audio_url = EXCLUDED.audio_url,
			script_url = EXCLUDED.script_url,
			script = EXCLUDED.script,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		podcast.ID, podcast.DigestID, podcast.AudioURL, podcast.ScriptURL,
		podcast.Script, podcast.CreatedAt, podcast.UpdatedAt).
		Scan(&podcast.ID, &podcast.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert podcast: %w", err)
	}

	return nil
}

// GetByDigestID retrieves the podcast for a digest.
func (r *PgPodcastRepository) GetByDigestID(ctx context.Context, digestID uuid.UUID) (*domain.Podcast, error) {
	query := `
		SELECT id, digest_id, audio_url, script_url, script, created_at, updated_at
		FROM podcasts
		WHERE digest_id = $1`

	var p domain.Podcast
	err := r.db.QueryRow(ctx, query, digestID).
		Scan(&p.ID, &p.DigestID, &p.AudioURL, &p.ScriptURL, &p.Script, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("podcast", digestID.String())
		}
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}

	return &p, nil
}
