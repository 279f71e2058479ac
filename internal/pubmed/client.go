package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// sourceName is the name used in external API errors.
	sourceName = "PubMed"

	// maxResponseBytes caps how much of an E-utilities response is read.
	maxResponseBytes = 10 << 20
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	// With an API key, you can increase this to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the default maximum results per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Metrics records request counters when non-nil.
	Metrics *observability.Metrics
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// SearchResult holds the identifiers matched by one esearch call.
// TotalResults may exceed len(PMIDs) when the query matched more records
// than the configured maximum; no pagination is performed.
type SearchResult struct {
	PMIDs        []string
	TotalResults int
}

// Client queries the NCBI E-utilities API.
type Client struct {
	config     Config
	httpClient *HTTPClient
	metrics    *observability.Metrics
}

// observe records a request counter for the given endpoint.
func (c *Client) observe(endpoint string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.PubMedRequests.WithLabelValues(endpoint).Inc()
	if err != nil {
		c.metrics.PubMedRequestsFailed.WithLabelValues(endpoint).Inc()
	}
}

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: NewHTTPClient(HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
		metrics: cfg.Metrics,
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

// Search queries esearch.fcgi with the given term and returns matching PMIDs.
// An empty result is not an error: a query that matches nothing returns a
// SearchResult with no PMIDs.
func (c *Client) Search(ctx context.Context, term string) (*SearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(c.config.MaxResults))
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ESearchResult
	err = c.getXML(ctx, u.String(), &result)
	c.observe("esearch", err)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	// A phrase-not-found response means zero matches, not a failure.
	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 {
		return &SearchResult{PMIDs: []string{}}, nil
	}

	return &SearchResult{
		PMIDs:        result.IDList.IDs,
		TotalResults: result.Count,
	}, nil
}

// FetchDetails retrieves full bibliographic records for the given PMIDs via
// one efetch.fcgi call. Records missing a PMID or title are silently dropped;
// records without an abstract carry domain.NoAbstractPlaceholder.
func (c *Client) FetchDetails(ctx context.Context, pmids []string) ([]domain.Article, error) {
	if len(pmids) == 0 {
		return []domain.Article{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var set PubmedArticleSet
	err = c.getXML(ctx, u.String(), &set)
	c.observe("efetch", err)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	articles := make([]domain.Article, 0, len(set.Articles))
	for _, record := range set.Articles {
		article, ok := recordToArticle(record)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// getXML executes a GET request and unmarshals the XML response into dst.
func (c *Client) getXML(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if err := xml.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to parse XML response: %w", err)
	}

	return nil
}

// recordToArticle converts an efetch record to a domain.Article.
// Returns false when the record lacks a PMID or title.
func recordToArticle(record PubmedArticle) (domain.Article, bool) {
	citation := record.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID.Value)
	title := strings.TrimSpace(citation.Article.ArticleTitle)
	if pmid == "" || title == "" {
		return domain.Article{}, false
	}

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	pubDate := citation.Article.Journal.JournalIssue.PubDate

	return domain.Article{
		PMID:     pmid,
		Title:    title,
		Abstract: extractAbstract(citation.Article.Abstract),
		Authors:  extractAuthors(citation.Article.AuthorList),
		Journal:  journal,
		PubYear:  extractPubYear(pubDate),
		PubDate:  normalizePubDate(pubDate),
	}, true
}

// extractAbstract concatenates abstract sections into a single string.
// Labeled sections from structured abstracts keep their labels, uppercased,
// and are separated by newlines.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return domain.NoAbstractPlaceholder
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, strings.ToUpper(at.Label)+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return domain.NoAbstractPlaceholder
	}

	return strings.Join(parts, "\n")
}

// extractAuthors renders the author list as a semicolon-joined
// "LastName, Initials" string.
func extractAuthors(authorList *AuthorList) string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return ""
	}

	names := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}
		switch {
		case a.CollectiveName != "":
			names = append(names, a.CollectiveName)
		case a.LastName != "" && a.Initials != "":
			names = append(names, a.LastName+", "+a.Initials)
		case a.LastName != "":
			names = append(names, a.LastName)
		}
	}

	return strings.Join(names, "; ")
}

// yearPattern matches a 4-digit year inside a free-text MedlineDate.
var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// extractPubYear returns the publication year, falling back to scanning the
// free-text MedlineDate field when no structured year is present.
func extractPubYear(pubDate PubDate) string {
	if pubDate.Year != "" {
		return pubDate.Year
	}
	if m := yearPattern.FindString(pubDate.MedlineDate); m != "" {
		return m
	}
	return ""
}

// monthNames maps lowercase month name strings (abbreviation and full) to
// month numbers. Package-level to avoid re-allocating on every call.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// normalizePubDate reconstructs a YYYY-MM-DD date from possibly-partial
// year/month/day fields. Missing month and day default to 01. Returns an
// empty string when no year can be determined.
func normalizePubDate(pubDate PubDate) string {
	year := extractPubYear(pubDate)
	if year == "" {
		return ""
	}

	month := 1
	if pubDate.Month != "" {
		if m, err := strconv.Atoi(pubDate.Month); err == nil && m >= 1 && m <= 12 {
			month = m
		} else if m, ok := monthNames[strings.ToLower(pubDate.Month)]; ok {
			month = int(m)
		}
	}

	day := 1
	if d, err := strconv.Atoi(pubDate.Day); err == nil && d >= 1 && d <= 31 {
		day = d
	}

	return fmt.Sprintf("%s-%02d-%02d", year, month, day)
}
