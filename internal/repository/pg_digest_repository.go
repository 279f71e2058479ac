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
var _ DigestRepository = (*PgDigestRepository)(nil)

// PgDigestRepository is a PostgreSQL implementation of DigestRepository.
type PgDigestRepository struct {
	db DBTX
}

// NewPgDigestRepository creates a new PostgreSQL digest repository.
func NewPgDigestRepository(db DBTX) *PgDigestRepository {
	return &PgDigestRepository{db: db}
}

// Create stores a new digest. A zero ID or CreatedAt is filled in.
func (r *PgDigestRepository) Create(ctx context.Context, digest *domain.Digest) error {
	if digest.ID == uuid.Nil {
		digest.ID = uuid.New()
	}
	if digest.CreatedAt.IsZero() {
		digest.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO digests (id, title, week_start, week_end, article_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		digest.ID, digest.Title, digest.WeekStart, digest.WeekEnd,
		digest.ArticleCount, digest.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create digest: %w", err)
	}

	return nil
}

// Get retrieves a digest by ID.
func (r *PgDigestRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Digest, error) {
	query := `
		SELECT id, title, week_start, week_end, article_count, created_at
		FROM digests
		WHERE id = $1`

	var d domain.Digest
	err := r.db.QueryRow(ctx, query, id).
		Scan(&d.ID, &d.Title, &d.WeekStart, &d.WeekEnd, &d.ArticleCount, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("digest", id.String())
		}
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}

	return &d, nil
}

// List returns all digests, newest first.
func (r *PgDigestRepository) List(ctx context.Context) ([]*domain.Digest, error) {
	query := `
		SELECT id, title, week_start, week_end, article_count, created_at
		FROM digests
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []*domain.Digest
	for rows.Next() {
		var d domain.Digest
		if err := rows.Scan(&d.ID, &d.Title, &d.WeekStart, &d.WeekEnd, &d.ArticleCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		digests = append(digests, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate digests: %w", err)
	}

	return digests, nil
}
