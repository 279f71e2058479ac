// Package domain defines the core entities and errors for the OncoBrief service.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ArticleType classifies a paper into one of a closed set of categories.
type ArticleType string

const (
	// ArticleTypeClinicalTrial describes clinical studies with patients,
	// trials, treatments, or outcomes.
	ArticleTypeClinicalTrial ArticleType = "Clinical trial"

	// ArticleTypeTranslational describes work bridging basic science and
	// clinical applications (biomarkers, pathways, mechanisms).
	ArticleTypeTranslational ArticleType = "Translational"

	// ArticleTypeBasicScience describes fundamental biology and laboratory work.
	ArticleTypeBasicScience ArticleType = "Basic science"

	// ArticleTypeOther is the default for papers that fit no other category.
	ArticleTypeOther ArticleType = "Other"
)

// ValidArticleTypes returns all recognized article types.
func ValidArticleTypes() []ArticleType {
	return []ArticleType{
		ArticleTypeClinicalTrial,
		ArticleTypeTranslational,
		ArticleTypeBasicScience,
		ArticleTypeOther,
	}
}

// NormalizeArticleType maps free-text classification output to the closed
// set of article types using case-insensitive substring matching.
// Unrecognized input resolves to ArticleTypeOther.
func NormalizeArticleType(raw string) ArticleType {
	s := strings.ToLower(raw)
	// "clinical trial" may come back with arbitrary whitespace between the words.
	condensed := strings.Join(strings.Fields(s), " ")
	switch {
	case strings.Contains(condensed, "clinical trial"):
		return ArticleTypeClinicalTrial
	case strings.Contains(s, "translational"):
		return ArticleTypeTranslational
	case strings.Contains(condensed, "basic science"):
		return ArticleTypeBasicScience
	default:
		return ArticleTypeOther
	}
}

// Journal is a user-managed publication venue included in digest searches.
type Journal struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Article is a bibliographic record fetched from PubMed, optionally
// annotated with an AI summary and classification. Identity is the PMID;
// the record is immutable once fetched except for AISummary, ArticleType,
// and DigestID, which are attached by the digest pipeline.
type Article struct {
	ID       uuid.UUID `json:"id"`
	PMID     string    `json:"pmid"`
	Title    string    `json:"title"`
	Abstract string    `json:"abstract"`

	// Authors is a semicolon-joined "Last, Initials" list.
	Authors string `json:"authors"`

	Journal string `json:"journal,omitempty"`
	PubYear string `json:"pubYear,omitempty"`

	// PubDate is a normalized YYYY-MM-DD publication date. Populated by the
	// topic-search flow for timeline positioning; empty elsewhere.
	PubDate string `json:"pubDate,omitempty"`

	AISummary   string      `json:"aiSummary,omitempty"`
	ArticleType ArticleType `json:"articleType,omitempty"`

	// DigestID references the digest that produced this article.
	// uuid.Nil marks an orphan, repaired by ArticleRepository.BackfillDigestID.
	DigestID uuid.UUID `json:"digestId"`

	CreatedAt time.Time `json:"created_at"`
}

// HasAbstract reports whether the article carries usable abstract text.
func (a *Article) HasAbstract() bool {
	return a.Abstract != "" && a.Abstract != NoAbstractPlaceholder
}

// NoAbstractPlaceholder is stored when PubMed returns no abstract for an article.
const NoAbstractPlaceholder = "No abstract available."

// Digest is a bundled, dated set of summarized articles produced by one
// pipeline run. ArticleCount mirrors the number of articles carrying this
// digest's ID; the pair can drift apart on partial failures and is repaired
// reactively, not preventively.
type Digest struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	WeekStart    time.Time `json:"weekStart"`
	WeekEnd      time.Time `json:"weekEnd"`
	CreatedAt    time.Time `json:"createdAt"`
	ArticleCount int       `json:"articleCount"`
}

// Podcast is the synthesized narration for a digest. At most one exists per
// digest; writes are last-write-wins upserts keyed by DigestID.
type Podcast struct {
	ID        uuid.UUID `json:"id"`
	DigestID  uuid.UUID `json:"digestId"`
	AudioURL  string    `json:"audioUrl"`
	ScriptURL string    `json:"scriptUrl"`
	Script    string    `json:"script"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TopicSearch records the parameters and outcome of an ad-hoc Topic
// Explorer search. These records are ephemeral and not tied to the
// weekly-digest lifecycle.
type TopicSearch struct {
	ID                 uuid.UUID `json:"id"`
	Topic              string    `json:"topic"`
	AdditionalKeywords []string  `json:"additionalKeywords"`
	Journals           []string  `json:"journals"`
	ResultCount        int       `json:"resultCount"`
	TotalResults       int       `json:"totalResults"`
	SearchDate         time.Time `json:"searchDate"`
}

// TopicSummary is the sectioned meta-analysis produced for a topic search.
type TopicSummary struct {
	FullText             string `json:"fullText"`
	Overview             string `json:"overview"`
	KeyFindings          string `json:"keyFindings"`
	ResearchTrends       string `json:"researchTrends"`
	ClinicalImplications string `json:"clinicalImplications"`
	FutureDirections     string `json:"futureDirections"`
}
