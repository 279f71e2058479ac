package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// Sample XML responses for testing.
const esearchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSearchResult PUBLIC "-//NLM//DTD esearch 20060628//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20060628/esearch.dtd">
<eSearchResult>
	<Count>137</Count>
	<RetMax>2</RetMax>
	<RetStart>0</RetStart>
	<IdList>
		<Id>12345678</Id>
		<Id>87654321</Id>
	</IdList>
</eSearchResult>`

const esearchEmptyResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
</eSearchResult>`

const esearchPhraseNotFoundXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
	<ErrorList>
		<PhraseNotFound>nonexistent_term_xyz</PhraseNotFound>
	</ErrorList>
</eSearchResult>`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2019//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_190101.dtd">
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">12345678</PMID>
			<Article PubModel="Print-Electronic">
				<Journal>
					<JournalIssue CitedMedium="Internet">
						<Volume>41</Volume>
						<Issue>3</Issue>
						<PubDate>
							<Year>2023</Year>
							<Month>Mar</Month>
							<Day>15</Day>
						</PubDate>
					</JournalIssue>
					<Title>Journal of Clinical Oncology</Title>
					<ISOAbbreviation>J Clin Oncol</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Pembrolizumab in Advanced Non-Small-Cell Lung Cancer</ArticleTitle>
				<Abstract>
					<AbstractText Label="Background" NlmCategory="BACKGROUND">Immune checkpoint inhibitors have changed first-line therapy.</AbstractText>
					<AbstractText Label="Methods" NlmCategory="METHODS">We randomized 500 patients to pembrolizumab or chemotherapy.</AbstractText>
					<AbstractText Label="Results" NlmCategory="RESULTS">Median overall survival improved from 12 to 20 months.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Smith</LastName>
						<ForeName>John A</ForeName>
						<Initials>JA</Initials>
					</Author>
					<Author ValidYN="Y">
						<LastName>Johnson</LastName>
						<ForeName>Emily</ForeName>
						<Initials>E</Initials>
					</Author>
					<Author ValidYN="Y">
						<CollectiveName>KEYNOTE Investigators</CollectiveName>
					</Author>
				</AuthorList>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">87654321</PMID>
			<Article PubModel="Print">
				<Journal>
					<JournalIssue CitedMedium="Print">
						<PubDate>
							<MedlineDate>2022 Nov-Dec</MedlineDate>
						</PubDate>
					</JournalIssue>
					<Title>Cancer Research</Title>
				</Journal>
				<ArticleTitle>KRAS G12C Inhibition in Pancreatic Cancer Models</ArticleTitle>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Garcia</LastName>
						<ForeName>Maria</ForeName>
						<Initials>M</Initials>
					</Author>
				</AuthorList>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">11112222</PMID>
			<Article PubModel="Print">
				<Journal>
					<Title>The Lancet Oncology</Title>
					<JournalIssue><PubDate><Year>2023</Year></PubDate></JournalIssue>
				</Journal>
				<ArticleTitle></ArticleTitle>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:   baseURL,
		RateLimit: 1000,
		BurstSize: 1000,
		Timeout:   5 * time.Second,
	})
}

func TestNew_AppliesDefaults(t *testing.T) {
	client := New(Config{})

	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search with results", func(t *testing.T) {
		var receivedQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Contains(t, r.URL.Path, "esearch.fcgi")
			receivedQuery = r.URL.Query().Get("term")
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(esearchResponseXML))
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		result, err := client.Search(context.Background(), `(cancer) AND ("Journal of Clinical Oncology"[Journal]) AND hasabstract`)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, []string{"12345678", "87654321"}, result.PMIDs)
		assert.Equal(t, 137, result.TotalResults)
		assert.Contains(t, receivedQuery, `"Journal of Clinical Oncology"[Journal]`)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(esearchEmptyResponseXML))
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Search(context.Background(), "anything")
		require.NoError(t, err)
		assert.Empty(t, result.PMIDs)
		assert.Equal(t, 0, result.TotalResults)
	})

	t.Run("phrase not found returns empty result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(esearchPhraseNotFoundXML))
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Search(context.Background(), "nonexistent_term_xyz")
		require.NoError(t, err)
		assert.Empty(t, result.PMIDs)
	})

	t.Run("retmax and api key are sent", func(t *testing.T) {
		var query string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			w.Write([]byte(esearchEmptyResponseXML))
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:    server.URL,
			APIKey:     "test-key",
			MaxResults: 25,
			RateLimit:  1000,
			BurstSize:  1000,
		})

		_, err := client.Search(context.Background(), "test")
		require.NoError(t, err)
		assert.Contains(t, query, "retmax=25")
		assert.Contains(t, query, "api_key=test-key")
	})

	t.Run("non-200 response is an external API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad query"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Search(context.Background(), "test")
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_FetchDetails(t *testing.T) {
	t.Run("parses article records", func(t *testing.T) {
		var receivedIDs string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Contains(t, r.URL.Path, "efetch.fcgi")
			receivedIDs = r.URL.Query().Get("id")
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(efetchResponseXML))
		}))
		defer server.Close()

		articles, err := newTestClient(server.URL).FetchDetails(context.Background(), []string{"12345678", "87654321", "11112222"})
		require.NoError(t, err)

		assert.Equal(t, "12345678,87654321,11112222", receivedIDs)

		// The third record has no title and is dropped.
		require.Len(t, articles, 2)

		first := articles[0]
		assert.Equal(t, "12345678", first.PMID)
		assert.Equal(t, "Pembrolizumab in Advanced Non-Small-Cell Lung Cancer", first.Title)
		assert.Equal(t, "Journal of Clinical Oncology", first.Journal)
		assert.Equal(t, "2023", first.PubYear)
		assert.Equal(t, "2023-03-15", first.PubDate)
		assert.Equal(t, "Smith, JA; Johnson, E; KEYNOTE Investigators", first.Authors)

		// Labeled sections uppercased, newline separated.
		lines := strings.Split(first.Abstract, "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "BACKGROUND: "))
		assert.True(t, strings.HasPrefix(lines[1], "METHODS: "))
		assert.True(t, strings.HasPrefix(lines[2], "RESULTS: "))

		second := articles[1]
		assert.Equal(t, "87654321", second.PMID)
		// Year recovered from the free-text MedlineDate.
		assert.Equal(t, "2022", second.PubYear)
		assert.Equal(t, "2022-01-01", second.PubDate)
		// No abstract in the record.
		assert.Equal(t, domain.NoAbstractPlaceholder, second.Abstract)
		assert.False(t, second.HasAbstract())
	})

	t.Run("empty pmid list short-circuits", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		articles, err := newTestClient(server.URL).FetchDetails(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, articles)
		assert.False(t, called)
	})
}

func TestNormalizePubDate(t *testing.T) {
	tests := []struct {
		name     string
		pubDate  PubDate
		expected string
	}{
		{
			name:     "full structured date",
			pubDate:  PubDate{Year: "2023", Month: "03", Day: "15"},
			expected: "2023-03-15",
		},
		{
			name:     "month name",
			pubDate:  PubDate{Year: "2023", Month: "Mar", Day: "5"},
			expected: "2023-03-05",
		},
		{
			name:     "full month name case-insensitive",
			pubDate:  PubDate{Year: "2023", Month: "DECEMBER"},
			expected: "2023-12-01",
		},
		{
			name:     "missing month and day default to 01",
			pubDate:  PubDate{Year: "2021"},
			expected: "2021-01-01",
		},
		{
			name:     "medline date fallback",
			pubDate:  PubDate{MedlineDate: "2020 Jan-Feb"},
			expected: "2020-01-01",
		},
		{
			name:     "no year",
			pubDate:  PubDate{Month: "Jan"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePubDate(tt.pubDate))
		})
	}
}

func TestExtractPubYear(t *testing.T) {
	assert.Equal(t, "2023", extractPubYear(PubDate{Year: "2023"}))
	assert.Equal(t, "2020", extractPubYear(PubDate{MedlineDate: "2020 Spring"}))
	assert.Equal(t, "1998", extractPubYear(PubDate{MedlineDate: "Winter 1998"}))
	assert.Equal(t, "", extractPubYear(PubDate{}))
}

func TestExtractAuthors(t *testing.T) {
	t.Run("nil list", func(t *testing.T) {
		assert.Equal(t, "", extractAuthors(nil))
	})

	t.Run("skips invalid authors", func(t *testing.T) {
		list := &AuthorList{Authors: []Author{
			{LastName: "Smith", Initials: "JA"},
			{LastName: "Ghost", Initials: "G", ValidYN: "N"},
			{LastName: "Solo"},
		}}
		assert.Equal(t, "Smith, JA; Solo", extractAuthors(list))
	})
}
