// Package podcast turns digests and research summaries into narrated audio:
// it renders an SSML script, splits it into chunks Polly accepts, and
// synthesizes and concatenates the resulting MP3 segments.
package podcast

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// DefaultDigestTitle is used when a digest script is requested without one.
const DefaultDigestTitle = "Weekly Oncology Digest"

// abstractWordLimit bounds the spoken excerpt when an article has no AI summary.
const abstractWordLimit = 100

// BuildDigestScript renders the SSML narration for a digest episode:
// intro, a table-of-contents pass over the articles, a detailed block per
// article, and an outro.
func BuildDigestScript(digestTitle string, articles []*domain.Article) string {
	if digestTitle == "" {
		digestTitle = DefaultDigestTitle
	}

	var b strings.Builder
	b.WriteString(`<speak>Welcome to OncoBrief, <break time="200ms"/> your weekly podcast summarizing the latest oncology research. `)
	fmt.Fprintf(&b, `This episode covers %s. <break time="300ms"/> `, digestTitle)
	fmt.Fprintf(&b, "We'll discuss %d recent publications from top oncology journals.<break time=\"700ms\"/>\n\n", len(articles))

	b.WriteString("Here's a quick overview of the articles we'll cover:<break time=\"300ms\"/>\n\n")
	for i, article := range articles {
		fmt.Fprintf(&b, "Article %d: %s. Published in %s.\n", i+1, article.Title, article.Journal)
	}
	b.WriteString("<break time=\"1000ms\"/>Now, let's explore each article in more detail.<break time=\"700ms\"/>\n\n")

	for i, article := range articles {
		fmt.Fprintf(&b, "<emphasis level=\"strong\">Article %d:</emphasis> %s.\n", i+1, article.Title)

		if first := FirstAuthor(article.Authors); first != "" {
			fmt.Fprintf(&b, "From %s and colleagues.\n", first)
		}

		fmt.Fprintf(&b, "Published in %s", article.Journal)
		if article.PubYear != "" {
			fmt.Fprintf(&b, " in %s", article.PubYear)
		}
		b.WriteString(".<break time=\"300ms\"/>\n")

		switch {
		case article.AISummary != "":
			b.WriteString(article.AISummary)
		case article.HasAbstract():
			b.WriteString(excerptWords(article.Abstract, abstractWordLimit))
		default:
			b.WriteString("No abstract available for this article.")
		}
		b.WriteString("\n\n<break time=\"700ms\"/>")
	}

	b.WriteString(`<break time="500ms"/>That concludes this episode of OncoBrief. <break time="300ms"/> Thank you for listening. <break time="300ms"/> For more detailed information on these articles, please visit the OncoBrief website or check the original publications. <break time="300ms"/> Stay tuned for next week's update on the latest oncology research.</speak>`)

	return b.String()
}

// BuildResearchScript renders the SSML narration for a topic meta-analysis
// episode. Section text passes through SSML sanitization because the model
// output may contain markup-hostile characters.
func BuildResearchScript(topic string, summary *domain.TopicSummary) string {
	if topic == "" {
		topic = "oncology research"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<speak>Welcome to this special OncoBrief podcast episode, <break time="200ms"/> focusing on a research summary about %s. <break time="500ms"/>`, SanitizeForSSML(topic))

	sections := []struct {
		lead string
		text string
	}{
		{"Let's begin with an overview.", summary.Overview},
		{"Now, let's explore the key findings.", summary.KeyFindings},
		{"Let's examine the current research trends in this field.", summary.ResearchTrends},
		{"Now for the clinical implications of this research.", summary.ClinicalImplications},
		{"Finally, let's consider future directions for research.", summary.FutureDirections},
	}
	for _, s := range sections {
		if s.text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s <break time=\"300ms\"/>\n\n%s<break time=\"700ms\"/>\n\n", s.lead, SanitizeForSSML(s.text))
	}

	b.WriteString(`<break time="500ms"/>That concludes this research summary podcast. <break time="300ms"/> Thank you for listening. <break time="300ms"/> For more detailed information, please refer to the original research papers and visit the OncoBrief website.</speak>`)

	return b.String()
}

// FirstAuthor extracts the first author from a semicolon- or comma-joined
// author string. Returns "" when no author is present.
func FirstAuthor(authors string) string {
	if authors == "" {
		return ""
	}
	if idx := strings.IndexAny(authors, ",;"); idx >= 0 {
		authors = authors[:idx]
	}
	return strings.TrimSpace(authors)
}

var (
	citationPattern    = regexp.MustCompile(`\[\^.*?\]`)
	parentheticalsOnce = regexp.MustCompile(`\([^()]*\)`)
)

// SanitizeForSSML escapes XML special characters and strips markup-hostile
// artifacts (citation markers, parentheticals, smart quotes) from model
// output before it is embedded in SSML.
func SanitizeForSSML(text string) string {
	if text == "" {
		return ""
	}

	s := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	).Replace(text)

	s = citationPattern.ReplaceAllString(s, "")
	// Strip nested parentheticals inside-out.
	for {
		next := parentheticalsOnce.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}

	s = strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
	).Replace(s)

	return s
}

func excerptWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ") + "..."
}
