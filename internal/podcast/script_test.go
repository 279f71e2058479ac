package podcast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncobrief/oncobrief/internal/domain"
)

func TestBuildDigestScript(t *testing.T) {
	articles := []*domain.Article{
		{
			Title:     "Pembrolizumab in early TNBC",
			Authors:   "Schmid, P; Cortes, J",
			Journal:   "NEJM",
			PubYear:   "2022",
			AISummary: "A landmark immunotherapy trial.",
		},
		{
			Title:    "KRAS G12C inhibition",
			Journal:  "Cancer Cell",
			Abstract: "Sotorasib showed activity in resistant tumors across multiple cohorts.",
		},
		{
			Title:    "Silent record",
			Journal:  "JCO",
			Abstract: domain.NoAbstractPlaceholder,
		},
	}

	script := BuildDigestScript("Aug 18, 2025 - Aug 25, 2025", articles)

	assert.True(t, strings.HasPrefix(script, "<speak>"))
	assert.True(t, strings.HasSuffix(script, "</speak>"))
	assert.Contains(t, script, "This episode covers Aug 18, 2025 - Aug 25, 2025")
	assert.Contains(t, script, "We'll discuss 3 recent publications")

	// Table of contents precedes the detailed blocks.
	toc := strings.Index(script, "Article 1: Pembrolizumab in early TNBC")
	detail := strings.Index(script, `<emphasis level="strong">Article 1:</emphasis>`)
	require.Greater(t, toc, 0)
	assert.Greater(t, detail, toc)

	assert.Contains(t, script, "From Schmid and colleagues.")
	assert.Contains(t, script, "Published in NEJM in 2022")
	assert.Contains(t, script, "A landmark immunotherapy trial.")
	assert.Contains(t, script, "Sotorasib showed activity")
	assert.Contains(t, script, "No abstract available for this article.")
	assert.Contains(t, script, `<break time="700ms"/>`)
}

func TestBuildDigestScript_DefaultTitle(t *testing.T) {
	script := BuildDigestScript("", []*domain.Article{{Title: "A", Journal: "B"}})
	assert.Contains(t, script, DefaultDigestTitle)
}

func TestBuildDigestScript_AbstractExcerpt(t *testing.T) {
	words := make([]string, 150)
	for i := range words {
		words[i] = "word"
	}
	article := &domain.Article{Title: "Long", Journal: "J", Abstract: strings.Join(words, " ")}

	script := BuildDigestScript("t", []*domain.Article{article})
	assert.Contains(t, script, "word word word...")
	assert.NotContains(t, script, strings.Repeat("word ", 101))
}

func TestBuildResearchScript(t *testing.T) {
	summary := &domain.TopicSummary{
		Overview:             "APOBEC enzymes drive mutagenesis.",
		KeyFindings:          "Signatures SBS2 & SBS13 dominate.",
		ClinicalImplications: "Potential biomarker use.",
	}

	script := BuildResearchScript("APOBEC", summary)

	assert.True(t, strings.HasPrefix(script, "<speak>"))
	assert.True(t, strings.HasSuffix(script, "</speak>"))
	assert.Contains(t, script, "research summary about APOBEC")
	assert.Contains(t, script, "Let's begin with an overview.")
	assert.Contains(t, script, "APOBEC enzymes drive mutagenesis.")
	// Ampersand in model output must be escaped for SSML.
	assert.Contains(t, script, "Signatures SBS2 &amp; SBS13 dominate.")
	assert.Contains(t, script, "Now for the clinical implications")
	// Empty sections are skipped entirely.
	assert.NotContains(t, script, "research trends")
	assert.NotContains(t, script, "future directions")
}

func TestFirstAuthor(t *testing.T) {
	tests := []struct {
		authors string
		want    string
	}{
		{"Schmid, P; Cortes, J", "Schmid"},
		{"Smith J, Johnson A, et al.", "Smith J"},
		{"KEYNOTE Investigators", "KEYNOTE Investigators"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstAuthor(tt.authors))
	}
}

func TestSanitizeForSSML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"xml escapes", `a < b & c > "d"`, "a &lt; b &amp; c &gt; &quot;d&quot;"},
		{"citation markers removed", "finding [^1] stands", "finding  stands"},
		{"parentheticals removed", "rate (95% CI (1.2-1.4)) improved", "rate  improved"},
		{"smart quotes normalized", "‘hi’ “there”", `'hi' "there"`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeForSSML(tt.in))
		})
	}
}
