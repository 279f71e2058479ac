package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*PgArticleRepository)(nil)

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db DBTX
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db DBTX) *PgArticleRepository {
	return &PgArticleRepository{db: db}
}

const insertArticleQuery = `
	INSERT INTO articles (
		id, pmid, title, abstract, authors, journal,
		pub_year, pub_date, ai_summary, article_type, digest_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// CreateBatch stores a set of articles in a single batched roundtrip.
// Zero IDs and CreatedAt timestamps are filled in; a uuid.Nil DigestID is
// stored as NULL, marking the article an orphan.
func (r *PgArticleRepository) CreateBatch(ctx context.Context, articles []*domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
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
		batch.Queue(insertArticleQuery,
			a.ID, a.PMID, a.Title, a.Abstract, a.Authors, a.Journal,
			a.PubYear, a.PubDate, a.AISummary, a.ArticleType,
			nullableUUID(a.DigestID), a.CreatedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range articles {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert article %s: %w", articles[i].PMID, err)
		}
	}

	return nil
}

// GetByDigestID returns all articles attached to a digest, ordered by title.
func (r *PgArticleRepository) GetByDigestID(ctx context.Context, digestID uuid.UUID) ([]*domain.Article, error) {
	query := selectArticleColumns + `
		WHERE digest_id = $1
		ORDER BY title`

	rows, err := r.db.Query(ctx, query, digestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for digest: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// ListAll returns every stored article, newest first.
func (r *PgArticleRepository) ListAll(ctx context.Context) ([]*domain.Article, error) {
	query := selectArticleColumns + `
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// BackfillDigestID attaches all orphaned articles to the given digest.
func (r *PgArticleRepository) BackfillDigestID(ctx context.Context, digestID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE articles SET digest_id = $1 WHERE digest_id IS NULL`, digestID)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill digest id: %w", err)
	}
	return tag.RowsAffected(), nil
}

const selectArticleColumns = `
	SELECT id, pmid, title, abstract, authors, journal,
	       pub_year, pub_date, ai_summary, article_type, digest_id, created_at
	FROM articles`

func scanArticles(rows pgx.Rows) ([]*domain.Article, error) {
	var articles []*domain.Article
	for rows.Next() {
		var a domain.Article
		var digestID *uuid.UUID
		err := rows.Scan(
			&a.ID, &a.PMID, &a.Title, &a.Abstract, &a.Authors, &a.Journal,
			&a.PubYear, &a.PubDate, &a.AISummary, &a.ArticleType,
			&digestID, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if digestID != nil {
			a.DigestID = *digestID
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}

	return articles, nil
}

// nullableUUID maps uuid.Nil to SQL NULL for nullable foreign keys.
func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
