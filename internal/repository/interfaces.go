package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// JournalRepository manages the user-configured journal list that scopes
// every digest search.
type JournalRepository interface {
	// List returns all journals ordered by name.
	List(ctx context.Context) ([]*domain.Journal, error)

	// Add stores a new journal. Adding a name that already exists returns
	// the existing journal rather than an error.
	Add(ctx context.Context, name string) (*domain.Journal, error)

	// Remove deletes a journal by ID.
	// Returns domain.ErrNotFound if no matching journal exists.
	Remove(ctx context.Context, id uuid.UUID) error
}

// DigestRepository manages digest records.
type DigestRepository interface {
	// Create stores a new digest.
	Create(ctx context.Context, digest *domain.Digest) error

	// Get retrieves a digest by ID.
	// Returns domain.ErrNotFound if no matching digest exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.Digest, error)

	// List returns all digests, newest first.
	List(ctx context.Context) ([]*domain.Digest, error)
}

// ArticleRepository manages fetched article records. Articles are written
// once per digest run; only the digest linkage is ever repaired afterwards.
type ArticleRepository interface {
	// CreateBatch stores a set of articles in one roundtrip.
	CreateBatch(ctx context.Context, articles []*domain.Article) error

	// GetByDigestID returns all articles attached to a digest.
	GetByDigestID(ctx context.Context, digestID uuid.UUID) ([]*domain.Article, error)

	// ListAll returns every stored article, newest first.
	ListAll(ctx context.Context) ([]*domain.Article, error)

	// BackfillDigestID attaches orphaned articles (no digest linkage) to
	// the given digest and returns how many were repaired.
	BackfillDigestID(ctx context.Context, digestID uuid.UUID) (int64, error)
}

// PodcastRepository manages synthesized podcasts. At most one podcast
// exists per digest; Upsert is last-write-wins keyed by DigestID.
type PodcastRepository interface {
	// Upsert inserts or replaces the podcast for a digest.
	Upsert(ctx context.Context, podcast *domain.Podcast) error

	// GetByDigestID retrieves the podcast for a digest.
	// Returns domain.ErrNotFound if none exists.
	GetByDigestID(ctx context.Context, digestID uuid.UUID) (*domain.Podcast, error)
}
