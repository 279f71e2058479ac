package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncobrief/oncobrief/internal/digest"
	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/repository"
	"github.com/oncobrief/oncobrief/internal/topic"
)

type stubDigests struct {
	req      digest.Request
	result   *digest.Result
	repaired int64
	err      error
}

func (s *stubDigests) Generate(_ context.Context, req digest.Request) (*digest.Result, error) {
	s.req = req
	return s.result, s.err
}

func (s *stubDigests) RepairOrphans(_ context.Context, _ uuid.UUID) (int64, error) {
	return s.repaired, s.err
}

type stubTopics struct {
	req    topic.Request
	result *topic.Result
	err    error
}

func (s *stubTopics) Explore(_ context.Context, req topic.Request) (*topic.Result, error) {
	s.req = req
	return s.result, s.err
}

type stubPodcasts struct {
	digest   *domain.Digest
	articles []*domain.Article
	err      error
}

func (s *stubPodcasts) GenerateDigestPodcast(_ context.Context, d *domain.Digest, articles []*domain.Article) (*domain.Podcast, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.digest = d
	s.articles = articles
	return &domain.Podcast{
		DigestID:  d.ID,
		AudioURL:  "/podcasts/podcast-" + d.ID.String() + ".mp3",
		ScriptURL: "/podcasts/podcast-script-" + d.ID.String() + ".txt",
		Script:    "<speak>hi</speak>",
	}, nil
}

func (s *stubPodcasts) GenerateResearchPodcast(_ context.Context, _ string, _ *domain.TopicSummary) (*domain.Podcast, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Podcast{
		ID:        uuid.New(),
		AudioURL:  "/podcasts/research-podcast-1.mp3",
		ScriptURL: "/podcasts/research-podcast-script-1.txt",
	}, nil
}

type stubEmails struct {
	digestTo string
	testTo   string
	podcast  *domain.Podcast
	err      error
}

func (s *stubEmails) SendDigest(_ context.Context, to string, _ *domain.Digest, _ []*domain.Article, podcast *domain.Podcast) error {
	if s.err != nil {
		return s.err
	}
	s.digestTo = to
	s.podcast = podcast
	return nil
}

func (s *stubEmails) SendTest(_ context.Context, to string) error {
	if s.err != nil {
		return s.err
	}
	if to == "" {
		return domain.NewValidationError("to", "invalid email address")
	}
	s.testTo = to
	return nil
}

type testServer struct {
	*Server
	repos    *repository.Repositories
	digests  *stubDigests
	topics   *stubTopics
	podcasts *stubPodcasts
	emails   *stubEmails
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos := repository.NewMemory()
	ts := &testServer{
		repos:    repos,
		digests:  &stubDigests{},
		topics:   &stubTopics{},
		podcasts: &stubPodcasts{},
		emails:   &stubEmails{},
	}
	ts.Server = NewServer(Config{
		Address:   "127.0.0.1:0",
		EnvReport: map[string]string{"EMAIL_FROM": "digest@example.com"},
	}, ts.digests, ts.topics, ts.podcasts, ts.emails, repos, nil, zerolog.Nop())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGenerateDigestEndpoint(t *testing.T) {
	t.Run("returns persisted digest", func(t *testing.T) {
		ts := newTestServer(t)
		d := &domain.Digest{ID: uuid.New(), Title: "Aug 18, 2025 - Aug 25, 2025", ArticleCount: 1}
		ts.digests.result = &digest.Result{
			Digest:       d,
			Articles:     []*domain.Article{{PMID: "100", Title: "Trial", DigestID: d.ID}},
			TotalResults: 1,
		}

		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
			"journals": []string{"NEJM"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, d.ID.String(), body["digestId"])
		assert.Len(t, body["articles"], 1)
		assert.Equal(t, []string{"NEJM"}, ts.digests.req.Journals)
	})

	t.Run("empty window yields null digestId", func(t *testing.T) {
		ts := newTestServer(t)
		ts.digests.result = &digest.Result{
			Digest:  &domain.Digest{Title: "shell"},
			Message: digest.NoResultsMessage,
		}

		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
			"journals": []string{"NEJM"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Nil(t, body["digestId"])
		assert.Empty(t, body["articles"])
		assert.Equal(t, digest.NoResultsMessage, body["message"])
	})

	t.Run("requires journals", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "journals is required", body["error"])
	})

	t.Run("parses date range", func(t *testing.T) {
		ts := newTestServer(t)
		ts.digests.result = &digest.Result{Digest: &domain.Digest{}}

		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
			"journals":  []string{"NEJM"},
			"dateRange": map[string]string{"startDate": "2025-08-01", "endDate": "2025-08-15"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, ts.digests.req.StartDate)
		assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), *ts.digests.req.StartDate)
		require.NotNil(t, ts.digests.req.EndDate)
		assert.Equal(t, time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC), *ts.digests.req.EndDate)
	})

	t.Run("incomplete date range names the missing field", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
			"journals":  []string{"NEJM"},
			"dateRange": map[string]string{"startDate": "2025-08-01"},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "dateRange.endDate is required", body["error"])
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
			"journals":  []string{"NEJM"},
			"dateRange": map[string]string{"startDate": "08/01/2025", "endDate": "2025-08-15"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps validation errors to 400", func(t *testing.T) {
		ts := newTestServer(t)
		ts.digests.err = domain.NewValidationError("dateRange", "start date must not be after end date")

		rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
			"journals": []string{"NEJM"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTopicSearchEndpoint(t *testing.T) {
	t.Run("returns articles and summary", func(t *testing.T) {
		ts := newTestServer(t)
		search := &domain.TopicSearch{ID: uuid.New(), Topic: "APOBEC", TotalResults: 2}
		ts.topics.result = &topic.Result{
			Articles: []domain.Article{{PMID: "1", Title: "A"}},
			Summary:  &domain.TopicSummary{Overview: "o"},
			Search:   search,
		}

		rec := ts.do(t, http.MethodPost, "/api/topicSearch", map[string]any{
			"topic":                 "APOBEC",
			"journals":              []string{"Cancer Cell"},
			"fallbackToAllJournals": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, search.ID.String(), body["searchId"])
		assert.Equal(t, float64(2), body["totalResults"])
		assert.True(t, ts.topics.req.FallbackToAllJournals)
	})

	t.Run("passes the time range through", func(t *testing.T) {
		ts := newTestServer(t)
		ts.topics.result = &topic.Result{Search: &domain.TopicSearch{ID: uuid.New()}}

		rec := ts.do(t, http.MethodPost, "/api/topicSearch", map[string]any{
			"topic":     "APOBEC",
			"timeRange": map[string]any{"type": "relative", "months": 12},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, topic.TimeRangeRelative, ts.topics.req.TimeRange.Type)
		assert.Equal(t, 12, ts.topics.req.TimeRange.Months)
	})

	t.Run("parses an absolute time range", func(t *testing.T) {
		ts := newTestServer(t)
		ts.topics.result = &topic.Result{Search: &domain.TopicSearch{ID: uuid.New()}}

		rec := ts.do(t, http.MethodPost, "/api/topicSearch", map[string]any{
			"topic":     "APOBEC",
			"timeRange": map[string]any{"type": "absolute", "start": "2024-01-01", "end": "2024-06-30"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, topic.TimeRangeAbsolute, ts.topics.req.TimeRange.Type)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ts.topics.req.TimeRange.Start)
		assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), ts.topics.req.TimeRange.End)
	})

	t.Run("rejects a malformed time range date", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/topicSearch", map[string]any{
			"topic":     "APOBEC",
			"timeRange": map[string]any{"type": "absolute", "start": "01/01/2024", "end": "2024-06-30"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires topic", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/topicSearch", map[string]any{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "topic is required", body["error"])
	})
}

func TestGeneratePodcastEndpoint(t *testing.T) {
	t.Run("generates and persists podcast", func(t *testing.T) {
		ts := newTestServer(t)
		digestID := uuid.New()

		rec := ts.do(t, http.MethodPost, "/api/generatePodcast", map[string]any{
			"digestId":    digestID.String(),
			"digestTitle": "This week",
			"articles":    []map[string]any{{"pmid": "1", "title": "A", "abstract": "text"}},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Contains(t, body["audioUrl"], digestID.String())

		stored, err := ts.repos.Podcasts.GetByDigestID(context.Background(), digestID)
		require.NoError(t, err)
		assert.Equal(t, body["audioUrl"], stored.AudioURL)
	})

	t.Run("loads stored articles when none provided", func(t *testing.T) {
		ts := newTestServer(t)
		digestID := uuid.New()
		require.NoError(t, ts.repos.Articles.CreateBatch(context.Background(), []*domain.Article{
			{PMID: "9", Title: "Stored", DigestID: digestID},
		}))

		rec := ts.do(t, http.MethodPost, "/api/generatePodcast", map[string]any{
			"digestId": digestID.String(),
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ts.podcasts.articles, 1)
		assert.Equal(t, "Stored", ts.podcasts.articles[0].Title)
	})

	t.Run("rejects digest with no articles", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/generatePodcast", map[string]any{
			"digestId": uuid.New().String(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("503 when synthesis disabled", func(t *testing.T) {
		ts := newTestServer(t)
		ts.Server.podcasts = nil
		rec := ts.do(t, http.MethodPost, "/api/generatePodcast", map[string]any{
			"digestId": uuid.New().String(),
		})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGenerateResearchPodcastEndpoint(t *testing.T) {
	t.Run("generates research episode", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/generateResearchPodcast", map[string]any{
			"summary": map[string]any{
				"topic":    "APOBEC",
				"sections": map[string]string{"overview": "o"},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Contains(t, body["audioUrl"], "research-podcast")
	})

	t.Run("requires summary", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/generateResearchPodcast", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSendEmailEndpoint(t *testing.T) {
	t.Run("sends with stored digest and articles", func(t *testing.T) {
		ts := newTestServer(t)
		ctx := context.Background()

		d := &domain.Digest{Title: "Weekly"}
		require.NoError(t, ts.repos.Digests.Create(ctx, d))
		require.NoError(t, ts.repos.Articles.CreateBatch(ctx, []*domain.Article{
			{PMID: "1", Title: "A", DigestID: d.ID},
		}))

		rec := ts.do(t, http.MethodPost, "/api/sendEmail", map[string]any{
			"digestId":       d.ID.String(),
			"recipientEmail": "doc@example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "doc@example.com", ts.emails.digestTo)
	})

	t.Run("article override skips storage", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/sendEmail", map[string]any{
			"digestId":       uuid.New().String(),
			"recipientEmail": "doc@example.com",
			"articlesOverride": []map[string]any{
				{"pmid": "1", "title": "Override"},
			},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("404 with no articles anywhere", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/sendEmail", map[string]any{
			"digestId":       uuid.New().String(),
			"recipientEmail": "doc@example.com",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects invalid recipient", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/sendEmail", map[string]any{
			"digestId":       uuid.New().String(),
			"recipientEmail": "nope",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTestEmailEndpoint(t *testing.T) {
	t.Run("sends diagnostic email", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodGet, "/api/test-email?to=doc@example.com", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "doc@example.com", ts.emails.testTo)
	})

	t.Run("rejects missing recipient", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodGet, "/api/test-email", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTestEnvEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/test-env", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	env, ok := body["env"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "digest@example.com", env["EMAIL_FROM"])
}

func TestInternalErrorsMapTo500(t *testing.T) {
	ts := newTestServer(t)
	ts.digests.err = errors.New("pubmed search failed: connection reset")

	rec := ts.do(t, http.MethodPost, "/api/generateDigest", map[string]any{
		"journals": []string{"NEJM"},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}
