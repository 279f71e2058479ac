// Package digest implements the weekly digest pipeline: search PubMed for
// recent oncology articles from the configured journals, summarize and
// classify each abstract, and persist the bundled digest.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncobrief/oncobrief/internal/config"
	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
	"github.com/oncobrief/oncobrief/internal/pubmed"
	"github.com/oncobrief/oncobrief/internal/repository"
	"github.com/oncobrief/oncobrief/internal/summarize"
)

// digestTitleFormat renders "Aug 18, 2025 - Aug 25, 2025".
const digestTitleFormat = "Jan 2, 2006"

// NoResultsMessage is returned when the search window contains no articles.
const NoResultsMessage = "No new articles found for the selected journals and date range."

// Searcher finds and fetches PubMed articles.
type Searcher interface {
	Search(ctx context.Context, term string) (*pubmed.SearchResult, error)
	FetchDetails(ctx context.Context, pmids []string) ([]domain.Article, error)
}

// Summarizer produces an AI summary and classification for one article.
type Summarizer interface {
	SummarizeArticle(ctx context.Context, title, abstract string) (*summarize.ArticleSummary, error)
}

// Request selects the digest journals and date window. An empty journal
// list falls back to the stored journal configuration. Nil dates default
// to the last seven days. EndDate is extended to the end of its day so the
// range is inclusive.
type Request struct {
	Journals  []string
	StartDate *time.Time
	EndDate   *time.Time
}

// Result is the outcome of one digest run. When the search window was
// empty, Digest carries a uuid.Nil ID, Articles is empty, and nothing was
// persisted.
type Result struct {
	Digest       *domain.Digest
	Articles     []*domain.Article
	Message      string
	TotalResults int
}

// Persisted reports whether the run produced a stored digest.
func (r *Result) Persisted() bool {
	return r.Digest != nil && r.Digest.ID != uuid.Nil
}

// Assembler runs the digest pipeline.
type Assembler struct {
	searcher   Searcher
	summarizer Summarizer
	repos      *repository.Repositories
	cfg        config.DigestConfig
	logger     zerolog.Logger
	metrics    *observability.Metrics

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewAssembler creates a digest assembler.
func NewAssembler(
	searcher Searcher,
	summarizer Summarizer,
	repos *repository.Repositories,
	cfg config.DigestConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Assembler {
	return &Assembler{
		searcher:   searcher,
		summarizer: summarizer,
		repos:      repos,
		cfg:        cfg,
		logger:     logger.With().Str("component", "digest").Logger(),
		metrics:    metrics,
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// Generate runs one digest pipeline pass over the requested window.
func (a *Assembler) Generate(ctx context.Context, req Request) (*Result, error) {
	start := a.now()

	names := req.Journals
	if len(names) == 0 {
		journals, err := a.repos.Journals.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load journals: %w", err)
		}
		for _, j := range journals {
			names = append(names, j.Name)
		}
	}
	if len(names) == 0 {
		return nil, domain.NewValidationError("journals", "no journals configured")
	}

	weekStart, weekEnd, err := a.resolveWindow(req)
	if err != nil {
		return nil, err
	}

	logger := observability.WithDigestContext(a.logger, "", weekStart, weekEnd)
	logger.Info().Int("journals", len(names)).Msg("starting digest generation")

	term := pubmed.BuildDigestQuery(a.cfg.SubjectTerms, names, weekStart, weekEnd)
	searchResult, err := a.searcher.Search(ctx, term)
	if err != nil {
		a.metrics.DigestsFailed.Inc()
		return nil, fmt.Errorf("pubmed search failed: %w", err)
	}

	title := fmt.Sprintf("%s - %s",
		weekStart.Format(digestTitleFormat), weekEnd.Format(digestTitleFormat))

	if len(searchResult.PMIDs) == 0 {
		logger.Info().Msg("no articles in window")
		return &Result{
			Digest: &domain.Digest{
				Title:     title,
				WeekStart: weekStart,
				WeekEnd:   weekEnd,
			},
			Message: NoResultsMessage,
		}, nil
	}

	fetched, err := a.searcher.FetchDetails(ctx, searchResult.PMIDs)
	if err != nil {
		a.metrics.DigestsFailed.Inc()
		return nil, fmt.Errorf("pubmed fetch failed: %w", err)
	}

	limit := a.cfg.ProcessLimit
	if limit <= 0 || limit > len(fetched) {
		limit = len(fetched)
	}
	fetched = fetched[:limit]

	articles := make([]*domain.Article, 0, len(fetched))
	for i := range fetched {
		article := fetched[i]
		if err := a.summarizeArticle(ctx, &article); err != nil {
			if ctx.Err() != nil {
				a.metrics.DigestsFailed.Inc()
				return nil, err
			}
			// Drop the article rather than failing the whole digest.
			articleLogger := observability.WithArticleContext(a.logger, article.PMID, article.Title)
			articleLogger.Warn().Err(err).Msg("dropping article after summarization failure")
			continue
		}
		articles = append(articles, &article)

		if i < len(fetched)-1 && a.cfg.ArticleDelay > 0 {
			if err := a.sleep(ctx, a.cfg.ArticleDelay); err != nil {
				a.metrics.DigestsFailed.Inc()
				return nil, err
			}
		}
	}

	digest := &domain.Digest{
		ID:           uuid.New(),
		Title:        title,
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		ArticleCount: len(articles),
	}
	for _, article := range articles {
		article.DigestID = digest.ID
	}

	if err := a.repos.Digests.Create(ctx, digest); err != nil {
		a.metrics.DigestsFailed.Inc()
		return nil, fmt.Errorf("failed to persist digest: %w", err)
	}
	if err := a.repos.Articles.CreateBatch(ctx, articles); err != nil {
		a.metrics.DigestsFailed.Inc()
		return nil, fmt.Errorf("failed to persist articles: %w", err)
	}

	a.metrics.DigestsGenerated.Inc()
	a.metrics.DigestDuration.Observe(a.now().Sub(start).Seconds())
	a.metrics.ArticlesPerDigest.Observe(float64(len(articles)))

	logger.Info().
		Str("digest_id", digest.ID.String()).
		Int("articles", len(articles)).
		Int("total_results", searchResult.TotalResults).
		Dur("duration", a.now().Sub(start)).
		Msg("digest generated")

	return &Result{
		Digest:       digest,
		Articles:     articles,
		TotalResults: searchResult.TotalResults,
	}, nil
}

// RepairOrphans attaches articles with no digest linkage to the given
// digest, returning how many were repaired.
func (a *Assembler) RepairOrphans(ctx context.Context, digestID uuid.UUID) (int64, error) {
	repaired, err := a.repos.Articles.BackfillDigestID(ctx, digestID)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill articles: %w", err)
	}
	if repaired > 0 {
		a.logger.Info().
			Str("digest_id", digestID.String()).
			Int64("repaired", repaired).
			Msg("backfilled orphaned articles")
	}
	return repaired, nil
}

func (a *Assembler) summarizeArticle(ctx context.Context, article *domain.Article) error {
	logger := observability.WithArticleContext(a.logger, article.PMID, article.Title)

	if !article.HasAbstract() {
		article.ArticleType = domain.ArticleTypeOther
		logger.Debug().Msg("no abstract, skipping summarization")
		return nil
	}

	summary, err := a.summarizer.SummarizeArticle(ctx, article.Title, article.Abstract)
	if err != nil {
		return fmt.Errorf("summarization aborted for %s: %w", article.PMID, err)
	}

	article.AISummary = summary.Summary
	article.ArticleType = summary.Type

	a.metrics.ArticlesSummarized.Inc()
	if summary.Fallback {
		a.metrics.SummaryFallbacks.Inc()
		logger.Warn().Msg("used extractive fallback summary")
	}

	return nil
}

// resolveWindow turns the request dates into an inclusive window,
// defaulting to the last seven days.
func (a *Assembler) resolveWindow(req Request) (time.Time, time.Time, error) {
	if req.StartDate != nil && req.EndDate != nil {
		start := *req.StartDate
		if start.After(*req.EndDate) {
			return time.Time{}, time.Time{}, domain.NewValidationError(
				"dateRange", "start date must not be after end date")
		}
		return start, endOfDay(*req.EndDate), nil
	}

	end := a.now()
	return end.AddDate(0, 0, -7), end, nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59,
		int(999*time.Millisecond), t.Location())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
