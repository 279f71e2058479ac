package summarize

import (
	"fmt"
	"strings"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// TopicRequest describes a meta-analysis request over a set of articles.
type TopicRequest struct {
	// Topic is the subject of the search (e.g. "APOBEC").
	Topic string
	// Keywords are optional additional focus terms.
	Keywords []string
	// TimeRangeText is a human-readable description of the searched period
	// (e.g. "the last 6 months").
	TimeRangeText string
	// Articles are the records whose abstracts feed the analysis.
	Articles []domain.Article
}

// buildArticlePrompt renders the combined summarize-and-classify prompt for
// a single abstract.
func buildArticlePrompt(title, abstract string) string {
	return fmt.Sprintf(`Analyze the following medical research abstract and perform two tasks:

TASK 1: Summarize the abstract in 3-5 concise sentences. Focus on the key findings, methodology, and implications. Use clear, professional language suitable for medical professionals.

TASK 2: Classify this paper into ONE of these categories:
- Clinical trial (if it describes a clinical study with patients, trials, treatments, or outcomes)
- Translational (if it bridges basic science and clinical applications, involves biomarkers, pathways, or mechanisms with clinical relevance)
- Basic science (if it focuses on fundamental biology, laboratory experiments, animal models, cellular/molecular mechanisms)
- Other (if it doesn't clearly fit any of the above categories)

Title: %s
Abstract:
%s

Format your response exactly like this:
SUMMARY: [Your 3-5 sentence summary]
CLASSIFICATION: [Single category name]`, title, abstract)
}

// buildTopicPrompt renders the meta-analysis prompt over a collection of
// abstracts.
func buildTopicPrompt(req TopicRequest) string {
	blocks := make([]string, 0, len(req.Articles))
	for _, a := range req.Articles {
		blocks = append(blocks, fmt.Sprintf("TITLE: %s\nJOURNAL: %s\nABSTRACT: %s\n---", a.Title, a.Journal, a.Abstract))
	}
	combined := strings.Join(blocks, "\n\n")

	timeRange := req.TimeRangeText
	if timeRange == "" {
		timeRange = "recent months"
	}

	keywordsText := ""
	if len(req.Keywords) > 0 {
		keywordsText = " with a focus on " + strings.Join(req.Keywords, ", ")
	}

	return fmt.Sprintf(`You are a medical research analyst specializing in oncology. Analyze the following collection of research abstracts about "%s"%s published during %s.

Task: Create a comprehensive yet concise meta-analysis summary that:
1. Identifies major discoveries and advances related to %s
2. Highlights consistent findings across multiple papers
3. Notes any contradictory results or open questions
4. Summarizes the most promising research directions
5. Identifies key methodological approaches being used
6. Suggests implications for clinical practice when relevant

Format your response in these sections:
1. OVERVIEW: A brief introduction to the research landscape for %s during this period
2. KEY FINDINGS: The most significant discoveries, organized by theme
3. RESEARCH TRENDS: Methodological approaches and emerging directions
4. CLINICAL IMPLICATIONS: Relevant findings for medical practice (if applicable)
5. FUTURE DIRECTIONS: Where the field appears to be heading

Here are the research abstracts:

%s

Provide a scholarly, objective analysis suitable for medical professionals.`,
		req.Topic, keywordsText, timeRange, req.Topic, req.Topic, combined)
}
