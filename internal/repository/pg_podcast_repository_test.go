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

func TestPgPodcastRepository_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPodcastRepository(mock)
	digestID := uuid.New()
	existingID := uuid.New()
	created := time.Now().UTC().Add(-time.Hour)

	podcast := &domain.Podcast{
		DigestID: digestID,
		AudioURL: "/podcasts/digest.mp3",
		Script:   "<speak>Welcome to OncoBrief.</speak>",
	}

	// Conflict path hands back the original row identity.
	mock.ExpectQuery(`INSERT INTO podcasts`).
		WithArgs(pgxmock.AnyArg(), digestID, "/podcasts/digest.mp3", "",
			podcast.Script, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow(existingID, created))

	err = repo.Upsert(context.Background(), podcast)
	require.NoError(t, err)
	assert.Equal(t, existingID, podcast.ID)
	assert.Equal(t, created, podcast.CreatedAt)
	assert.False(t, podcast.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPodcastRepository_GetByDigestID(t *testing.T) {
	t.Run("returns podcast", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPodcastRepository(mock)
		digestID := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery(`SELECT id, digest_id, audio_url, script_url, script, created_at, updated_at`).
			WithArgs(digestID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "digest_id", "audio_url", "script_url", "script", "created_at", "updated_at"}).
				AddRow(uuid.New(), digestID, "/podcasts/digest.mp3", "/podcasts/digest.txt", "<speak>hi</speak>", now, now))

		podcast, err := repo.GetByDigestID(context.Background(), digestID)
		require.NoError(t, err)
		assert.Equal(t, digestID, podcast.DigestID)
		assert.Equal(t, "/podcasts/digest.mp3", podcast.AudioURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPodcastRepository(mock)
		digestID := uuid.New()

		mock.ExpectQuery(`SELECT id, digest_id, audio_url, script_url, script, created_at, updated_at`).
			WithArgs(digestID).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByDigestID(context.Background(), digestID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
