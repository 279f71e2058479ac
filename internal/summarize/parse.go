package summarize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	summaryPattern        = regexp.MustCompile(`(?is)SUMMARY:\s*(.*?)(?:CLASSIFICATION:|$)`)
	classificationPattern = regexp.MustCompile(`(?i)CLASSIFICATION:\s*(.*?)(?:\n|$)`)
)

// parseArticleResponse extracts the SUMMARY and CLASSIFICATION sections from
// a model response. Either result may be empty when the marker is missing.
func parseArticleResponse(text string) (summary, classification string) {
	if m := summaryPattern.FindStringSubmatch(text); m != nil {
		summary = strings.TrimSpace(m[1])
	}
	if m := classificationPattern.FindStringSubmatch(text); m != nil {
		classification = strings.TrimSpace(m[1])
	}
	return summary, classification
}

// extractSection pulls one named section from a numbered meta-analysis
// response. The section runs until the next numbered uppercase heading or
// the end of the text.
func extractSection(text, sectionName string) string {
	pattern := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(sectionName) + `:\s*(.*?)(?:\n\d+\.\s+[A-Z]|$)`)
	if m := pattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fmt.Sprintf("No %s section found.", strings.ToLower(sectionName))
}
