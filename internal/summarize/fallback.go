package summarize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// FallbackDisclaimer is appended to every extractive summary.
const FallbackDisclaimer = " (Note: This is an extractive summary due to AI model unavailability)"

// fallbackUnavailable is returned when even the extractive heuristic has
// nothing to work with.
const fallbackUnavailable = "Summary unavailable. Please read the abstract for details about this research."

// sentenceBoundary splits on whitespace following sentence-ending punctuation.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// ExtractiveSummary builds a deterministic summary without the model: the
// first sentence of each paragraph (truncated to 100 characters), at most
// three sentences, plus a disclaimer. It never fails; an empty abstract
// yields a static unavailable message.
func ExtractiveSummary(abstract string) string {
	var sentences []string
	for _, paragraph := range strings.Split(abstract, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		first := firstSentence(paragraph)
		if first == "" {
			continue
		}
		first = truncateRunes(first, 100)
		sentences = append(sentences, first)
		if len(sentences) == 3 {
			break
		}
	}

	if len(sentences) == 0 {
		return fallbackUnavailable
	}

	return strings.Join(sentences, " ") + FallbackDisclaimer
}

// truncateRunes shortens s to max runes, replacing the last three kept
// runes with an ellipsis. Cutting on rune boundaries keeps multi-byte
// characters (Greek letters, dashes) intact.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// firstSentence returns the first sentence of a paragraph, keeping its
// terminal punctuation.
func firstSentence(paragraph string) string {
	loc := sentenceBoundary.FindStringSubmatchIndex(paragraph)
	if loc == nil {
		return paragraph
	}
	// End of the punctuation mark, not of the trailing whitespace.
	return paragraph[:loc[3]]
}

// fallbackTopicSummary is the terminal degradation for meta-analysis
// requests: a static summary that names the topic and article count.
func fallbackTopicSummary(req TopicRequest) *domain.TopicSummary {
	timeRange := req.TimeRangeText
	if timeRange == "" {
		timeRange = "recent months"
	}

	return &domain.TopicSummary{
		FullText:             fmt.Sprintf("Failed to generate a comprehensive meta-analysis for %s. Please try again later.", req.Topic),
		Overview:             fmt.Sprintf("This is a collection of %d research papers about %s published in %s.", len(req.Articles), req.Topic, timeRange),
		KeyFindings:          "Unable to generate key findings summary.",
		ResearchTrends:       "Unable to analyze research trends.",
		ClinicalImplications: "Unable to determine clinical implications.",
		FutureDirections:     "Unable to suggest future directions.",
	}
}
