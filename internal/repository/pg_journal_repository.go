package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// Compile-time interface verification.
var _ JournalRepository = (*PgJournalRepository)(nil)

// PgJournalRepository is a PostgreSQL implementation of JournalRepository.
type PgJournalRepository struct {
	db DBTX
}

// NewPgJournalRepository creates a new PostgreSQL journal repository.
func NewPgJournalRepository(db DBTX) *PgJournalRepository {
	return &PgJournalRepository{db: db}
}

// List returns all journals ordered by name.
func (r *PgJournalRepository) List(ctx context.Context) ([]*domain.Journal, error) {
	query := `
		SELECT id, name, created_at
		FROM journals
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	var journals []*domain.Journal
	for rows.Next() {
		var j domain.Journal
		if err := rows.Scan(&j.ID, &j.Name, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		journals = append(journals, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journals: %w", err)
	}

	return journals, nil
}

// Add stores a new journal. Re-adding an existing name returns the stored
// journal, using a single INSERT...ON CONFLICT...RETURNING roundtrip.
func (r *PgJournalRepository) Add(ctx context.Context, name string) (*domain.Journal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "journal name cannot be empty")
	}

	query := `
		INSERT INTO journals (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			name = journals.name
		RETURNING id, name, created_at`

	var j domain.Journal
	err := r.db.QueryRow(ctx, query, uuid.New(), name, time.Now().UTC()).
		Scan(&j.ID, &j.Name, &j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add journal: %w", err)
	}

	return &j, nil
}

// Remove deletes a journal by ID.
func (r *PgJournalRepository) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM journals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("journal", id.String())
	}
	return nil
}
