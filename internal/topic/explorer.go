// Package topic implements the ad-hoc Topic Explorer: search PubMed for a
// user-supplied subject, optionally scoped to the configured journals, and
// produce a sectioned meta-analysis of the results.
package topic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
	"github.com/oncobrief/oncobrief/internal/pubmed"
	"github.com/oncobrief/oncobrief/internal/summarize"
)

// Searcher finds and fetches PubMed articles.
type Searcher interface {
	Search(ctx context.Context, term string) (*pubmed.SearchResult, error)
	FetchDetails(ctx context.Context, pmids []string) ([]domain.Article, error)
}

// Summarizer produces a sectioned meta-analysis over a set of articles.
type Summarizer interface {
	SummarizeTopic(ctx context.Context, req summarize.TopicRequest) (*domain.TopicSummary, error)
}

// Time range types.
const (
	TimeRangeRelative = "relative"
	TimeRangeAbsolute = "absolute"
)

// defaultTimeRangeMonths is the searched window when a request leaves the
// time range unset.
const defaultTimeRangeMonths = 6

// TimeRange selects the searched publication window: the last Months
// months, or the absolute Start to End period. The zero value means the
// last six months.
type TimeRange struct {
	Type   string
	Months int
	Start  time.Time
	End    time.Time
}

// window resolves the range to concrete dates against now.
func (tr TimeRange) window(now time.Time) (time.Time, time.Time) {
	if tr.Type != TimeRangeRelative && !tr.Start.IsZero() && !tr.End.IsZero() {
		return tr.Start, tr.End
	}
	months := tr.Months
	if months <= 0 {
		months = defaultTimeRangeMonths
	}
	return now.AddDate(0, -months, 0), now
}

// text describes the range for the meta-analysis prompt.
func (tr TimeRange) text() string {
	if tr.Type != TimeRangeRelative && !tr.Start.IsZero() && !tr.End.IsZero() {
		return fmt.Sprintf("the period from %s to %s",
			tr.Start.Format("2006-01-02"), tr.End.Format("2006-01-02"))
	}
	months := tr.Months
	if months <= 0 {
		months = defaultTimeRangeMonths
	}
	return fmt.Sprintf("the last %d months", months)
}

// Request describes one topic exploration.
type Request struct {
	// Topic is the subject searched for. Required.
	Topic string
	// AdditionalKeywords narrow the search and focus the meta-analysis.
	AdditionalKeywords []string
	// Journals optionally scopes the search. An empty list searches all of
	// PubMed from the start.
	Journals []string
	// TimeRange bounds the searched publication dates.
	TimeRange TimeRange
	// FallbackToAllJournals retries an empty journal-scoped search across
	// all of PubMed.
	FallbackToAllJournals bool
}

// Result is the outcome of one exploration. Summary is nil when no
// articles matched.
type Result struct {
	Articles []domain.Article
	Summary  *domain.TopicSummary
	Search   *domain.TopicSearch

	// JournalFilterRemoved reports that the journal-scoped search came up
	// empty and the results come from an unscoped retry.
	JournalFilterRemoved bool
}

// Explorer runs topic searches.
type Explorer struct {
	searcher   Searcher
	summarizer Summarizer
	logger     zerolog.Logger
	metrics    *observability.Metrics

	now func() time.Time
}

// NewExplorer creates a topic explorer.
func NewExplorer(searcher Searcher, summarizer Summarizer, logger zerolog.Logger, metrics *observability.Metrics) *Explorer {
	return &Explorer{
		searcher:   searcher,
		summarizer: summarizer,
		logger:     logger.With().Str("component", "topic").Logger(),
		metrics:    metrics,
		now:        time.Now,
	}
}

// Explore searches for the topic and produces a meta-analysis. When the
// journal-scoped search finds nothing, it retries across all of PubMed and
// flags the widened scope on the result.
func (e *Explorer) Explore(ctx context.Context, req Request) (*Result, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, domain.NewValidationError("topic", "topic is required")
	}

	start, end := req.TimeRange.window(e.now())
	term := pubmed.BuildTopicQuery(topic, req.AdditionalKeywords, req.Journals, start, end)
	searchResult, err := e.searcher.Search(ctx, term)
	if err != nil {
		e.metrics.TopicSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("pubmed search failed: %w", err)
	}

	result := &Result{}

	// Journal scoping can be too narrow for niche topics. Fall back to an
	// unscoped search before reporting nothing.
	if len(searchResult.PMIDs) == 0 && len(req.Journals) > 0 && req.FallbackToAllJournals {
		e.logger.Info().Str("topic", topic).Msg("no scoped results, retrying across all journals")
		term = pubmed.BuildTopicQuery(topic, req.AdditionalKeywords, nil, start, end)
		searchResult, err = e.searcher.Search(ctx, term)
		if err != nil {
			e.metrics.TopicSearches.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("pubmed fallback search failed: %w", err)
		}
		result.JournalFilterRemoved = true
	}

	if len(searchResult.PMIDs) == 0 {
		e.metrics.TopicSearches.WithLabelValues("empty").Inc()
		result.Search = e.searchRecord(req, topic, 0, searchResult.TotalResults)
		return result, nil
	}

	articles, err := e.searcher.FetchDetails(ctx, searchResult.PMIDs)
	if err != nil {
		e.metrics.TopicSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("pubmed fetch failed: %w", err)
	}

	// Newest publications first; undated records sink to the bottom.
	sort.SliceStable(articles, func(i, k int) bool {
		return articles[i].PubDate > articles[k].PubDate
	})

	summary, err := e.summarizer.SummarizeTopic(ctx, summarize.TopicRequest{
		Topic:         topic,
		Keywords:      req.AdditionalKeywords,
		TimeRangeText: req.TimeRange.text(),
		Articles:      articles,
	})
	if err != nil {
		e.metrics.TopicSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("meta-analysis failed: %w", err)
	}

	if result.JournalFilterRemoved {
		e.metrics.TopicSearches.WithLabelValues("fallback").Inc()
	} else {
		e.metrics.TopicSearches.WithLabelValues("ok").Inc()
	}

	result.Articles = articles
	result.Summary = summary
	result.Search = e.searchRecord(req, topic, len(articles), searchResult.TotalResults)

	e.logger.Info().
		Str("topic", topic).
		Int("articles", len(articles)).
		Int("total_results", searchResult.TotalResults).
		Bool("journal_filter_removed", result.JournalFilterRemoved).
		Msg("topic exploration complete")

	return result, nil
}

func (e *Explorer) searchRecord(req Request, topic string, resultCount, totalResults int) *domain.TopicSearch {
	return &domain.TopicSearch{
		ID:                 uuid.New(),
		Topic:              topic,
		AdditionalKeywords: req.AdditionalKeywords,
		Journals:           req.Journals,
		ResultCount:        resultCount,
		TotalResults:       totalResults,
		SearchDate:         e.now().UTC(),
	}
}
