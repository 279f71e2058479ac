package pubmed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDigestQuery(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)

	query := BuildDigestQuery(
		[]string{"cancer", "neoplasms", "oncology"},
		[]string{"Journal of Clinical Oncology", "The Lancet Oncology"},
		start, end,
	)

	expected := `(cancer OR neoplasms OR oncology) AND ` +
		`("Journal of Clinical Oncology"[Journal] OR "The Lancet Oncology"[Journal]) AND ` +
		`("2025/01/06"[Date - Publication] : "2025/01/12"[Date - Publication]) AND hasabstract`
	assert.Equal(t, expected, query)
}

func TestBuildTopicQuery(t *testing.T) {
	start := time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)

	t.Run("full query", func(t *testing.T) {
		query := BuildTopicQuery("APOBEC", []string{"mutagenesis"}, []string{"Cancer Cell"}, start, end)
		assert.Equal(t,
			`APOBEC[Title/Abstract] AND (mutagenesis[Title/Abstract]) AND `+
				`("Cancer Cell"[Journal]) AND 2025-02-25:2025-08-25[Date - Publication]`,
			query)
	})

	t.Run("keywords are field-scoped and OR-joined", func(t *testing.T) {
		query := BuildTopicQuery("KRAS G12C", []string{"sotorasib", "adagrasib"}, nil, start, end)
		assert.Contains(t, query, `(sotorasib[Title/Abstract] OR adagrasib[Title/Abstract])`)
	})

	t.Run("blank keywords are skipped", func(t *testing.T) {
		query := BuildTopicQuery("KRAS G12C", []string{"  ", ""}, nil, start, end)
		assert.Equal(t, `KRAS G12C[Title/Abstract] AND 2025-02-25:2025-08-25[Date - Publication]`, query)
	})

	t.Run("no date filter without a window", func(t *testing.T) {
		query := BuildTopicQuery("KRAS G12C", nil, nil, time.Time{}, time.Time{})
		assert.Equal(t, `KRAS G12C[Title/Abstract]`, query)
	})

	t.Run("never requires an abstract", func(t *testing.T) {
		query := BuildTopicQuery("APOBEC", []string{"mutagenesis"}, []string{"Cancer Cell"}, start, end)
		assert.NotContains(t, query, "hasabstract")
	})
}
