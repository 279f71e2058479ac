package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// Compile-time interface verification.
var (
	_ JournalRepository = (*MemJournalRepository)(nil)
	_ DigestRepository  = (*MemDigestRepository)(nil)
	_ ArticleRepository = (*MemArticleRepository)(nil)
	_ PodcastRepository = (*MemPodcastRepository)(nil)
)

// MemJournalRepository is an in-memory JournalRepository.
type MemJournalRepository struct {
	mu       sync.RWMutex
	journals map[uuid.UUID]*domain.Journal
}

// NewMemJournalRepository creates an empty in-memory journal repository.
func NewMemJournalRepository() *MemJournalRepository {
	return &MemJournalRepository{journals: make(map[uuid.UUID]*domain.Journal)}
}

// List returns all journals ordered by name.
func (r *MemJournalRepository) List(_ context.Context) ([]*domain.Journal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	journals := make([]*domain.Journal, 0, len(r.journals))
	for _, j := range r.journals {
		copied := *j
		journals = append(journals, &copied)
	}
	sort.Slice(journals, func(i, k int) bool { return journals[i].Name < journals[k].Name })

	return journals, nil
}

// Add stores a new journal, returning the existing record for duplicate names.
func (r *MemJournalRepository) Add(_ context.Context, name string) (*domain.Journal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "journal name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.journals {
		if strings.EqualFold(j.Name, name) {
			copied := *j
			return &copied, nil
		}
	}

	j := &domain.Journal{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	r.journals[j.ID] = j

	copied := *j
	return &copied, nil
}

// Remove deletes a journal by ID.
func (r *MemJournalRepository) Remove(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.journals[id]; !ok {
		return domain.NewNotFoundError("journal", id.String())
	}
	delete(r.journals, id)
	return nil
}

// MemDigestRepository is an in-memory DigestRepository.
type MemDigestRepository struct {
	mu      sync.RWMutex
	digests map[uuid.UUID]*domain.Digest
}

// NewMemDigestRepository creates an empty in-memory digest repository.
func NewMemDigestRepository() *MemDigestRepository {
	return &MemDigestRepository{digests: make(map[uuid.UUID]*domain.Digest)}
}

// Create stores a new digest.
func (r *MemDigestRepository) Create(_ context.Context, digest *domain.Digest) error {
	if digest.ID == uuid.Nil {
		digest.ID = uuid.New()
	}
	if digest.CreatedAt.IsZero() {
		digest.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *digest
	r.digests[digest.ID] = &copied
	return nil
}

// Get retrieves a digest by ID.
func (r *MemDigestRepository) Get(_ context.Context, id uuid.UUID) (*domain.Digest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.digests[id]
	if !ok {
		return nil, domain.NewNotFoundError("digest", id.String())
	}
	copied := *d
	return &copied, nil
}

// List returns all digests, newest first.
func (r *MemDigestRepository) List(_ context.Context) ([]*domain.Digest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	digests := make([]*domain.Digest, 0, len(r.digests))
	for _, d := range r.digests {
		copied := *d
		digests = append(digests, &copied)
	}
	sort.Slice(digests, func(i, k int) bool {
		return digests[i].CreatedAt.After(digests[k].CreatedAt)
	})

	return digests, nil
}

// MemArticleRepository is an in-memory ArticleRepository.
type MemArticleRepository struct {
	mu       sync.RWMutex
	articles []*domain.Article
}

// NewMemArticleRepository creates an empty in-memory article repository.
func NewMemArticleRepository() *MemArticleRepository {
	return &MemArticleRepository{}
}

// CreateBatch stores a set of articles.
func (r *MemArticleRepository) CreateBatch(_ context.Context, articles []*domain.Article) error {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range articles {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.ArticleType == "" {
			a.ArticleType = domain.ArticleTypeOther
		}
		copied := *a
		r.articles = append(r.articles, &copied)
	}
	return nil
}

// GetByDigestID returns all articles attached to a digest, ordered by title.
func (r *MemArticleRepository) GetByDigestID(_ context.Context, digestID uuid.UUID) ([]*domain.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var articles []*domain.Article
	for _, a := range r.articles {
		if a.DigestID == digestID {
			copied := *a
			articles = append(articles, &copied)
		}
	}
	sort.Slice(articles, func(i, k int) bool { return articles[i].Title < articles[k].Title })

	return articles, nil
}

// ListAll returns every stored article, newest first.
func (r *MemArticleRepository) ListAll(_ context.Context) ([]*domain.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	articles := make([]*domain.Article, 0, len(r.articles))
	for _, a := range r.articles {
		copied := *a
		articles = append(articles, &copied)
	}
	sort.Slice(articles, func(i, k int) bool {
		return articles[i].CreatedAt.After(articles[k].CreatedAt)
	})

	return articles, nil
}

// BackfillDigestID attaches all orphaned articles to the given digest.
func (r *MemArticleRepository) BackfillDigestID(_ context.Context, digestID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var repaired int64
	for _, a := range r.articles {
		if a.DigestID == uuid.Nil {
			a.DigestID = digestID
			repaired++
		}
	}
	return repaired, nil
}

// MemPodcastRepository is an in-memory PodcastRepository.
type MemPodcastRepository struct {
	mu       sync.RWMutex
	podcasts map[uuid.UUID]*domain.Podcast // keyed by digest ID
}

// NewMemPodcastRepository creates an empty in-memory podcast repository.
func NewMemPodcastRepository() *MemPodcastRepository {
	return &MemPodcastRepository{podcasts: make(map[uuid.UUID]*domain.Podcast)}
}

// Upsert inserts or replaces the podcast for a digest.
func (r *MemPodcastRepository) Upsert(_ context.Context, podcast *domain.Podcast) error {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.podcasts[podcast.DigestID]; ok {
		podcast.ID = existing.ID
		podcast.CreatedAt = existing.CreatedAt
	} else {
		if podcast.ID == uuid.Nil {
			podcast.ID = uuid.New()
		}
		if podcast.CreatedAt.IsZero() {
			podcast.CreatedAt = now
		}
	}
	podcast.UpdatedAt = now

	copied := *podcast
	r.podcasts[podcast.DigestID] = &copied
	return nil
}

// GetByDigestID retrieves the podcast for a digest.
func (r *MemPodcastRepository) GetByDigestID(_ context.Context, digestID uuid.UUID) (*domain.Podcast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.podcasts[digestID]
	if !ok {
		return nil, domain.NewNotFoundError("podcast", digestID.String())
	}
	copied := *p
	return &copied, nil
}
