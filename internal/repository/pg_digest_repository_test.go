package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncobrief/oncobrief/internal/domain"
)

func TestPgDigestRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgDigestRepository(mock)
	ctx := context.Background()

	digest := &domain.Digest{
		Title:        "Aug 18, 2025 - Aug 25, 2025",
		WeekStart:    time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		WeekEnd:      time.Date(2025, 8, 25, 23, 59, 59, 0, time.UTC),
		ArticleCount: 12,
	}

	mock.ExpectExec(`INSERT INTO digests`).
		WithArgs(pgxmock.AnyArg(), digest.Title, digest.WeekStart, digest.WeekEnd,
			12, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(ctx, digest)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, digest.ID)
	assert.False(t, digest.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDigestRepository_Get(t *testing.T) {
	t.Run("returns digest", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDigestRepository(mock)
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery(`SELECT id, title, week_start, week_end, article_count, created_at`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "title", "week_start", "week_end", "article_count", "created_at"}).
				AddRow(id, "Aug 18, 2025 - Aug 25, 2025", now.AddDate(0, 0, -7), now, 5, now))

		digest, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, digest.ID)
		assert.Equal(t, 5, digest.ArticleCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgDigestRepository(mock)
		id := uuid.New()

		mock.ExpectQuery(`SELECT id, title, week_start, week_end, article_count, created_at`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.Get(context.Background(), id)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgDigestRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgDigestRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, title, week_start, week_end, article_count, created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "week_start", "week_end", "article_count", "created_at"}).
			AddRow(uuid.New(), "newer", now.AddDate(0, 0, -7), now, 3, now).
			AddRow(uuid.New(), "older", now.AddDate(0, 0, -14), now.AddDate(0, 0, -7), 8, now.AddDate(0, 0, -7)))

	digests, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, digests, 2)
	assert.Equal(t, "newer", digests[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
