// Package repository provides data access interfaces and implementations
// for the OncoBrief service.
//
// Each entity (journal, digest, article, podcast) has a repository
// interface with two implementations: a PostgreSQL one built on the DBTX
// interface, and an in-memory one used for local development and as the
// test double. Which backend is active is selected by configuration at
// startup.
//
// All implementations are safe for concurrent use. PostgreSQL methods
// return domain-specific errors (domain.ErrNotFound via typed wrappers)
// and wrap database errors with context using %w.
package repository

import (
	"github.com/oncobrief/oncobrief/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// Repositories accept it in their constructors, so the same implementation
// works against the pool directly or inside database.DB.WithTransaction.
type DBTX = database.DBTX

// Repositories bundles all entity repositories behind one handle, so
// services and the HTTP server take a single dependency.
type Repositories struct {
	Journals JournalRepository
	Digests  DigestRepository
	Articles ArticleRepository
	Podcasts PodcastRepository
}

// NewPostgres builds the repository bundle over a shared DBTX.
func NewPostgres(db DBTX) *Repositories {
	return &Repositories{
		Journals: NewPgJournalRepository(db),
		Digests:  NewPgDigestRepository(db),
		Articles: NewPgArticleRepository(db),
		Podcasts: NewPgPodcastRepository(db),
	}
}

// NewMemory builds the in-memory repository bundle.
func NewMemory() *Repositories {
	return &Repositories{
		Journals: NewMemJournalRepository(),
		Digests:  NewMemDigestRepository(),
		Articles: NewMemArticleRepository(),
		Podcasts: NewMemPodcastRepository(),
	}
}
