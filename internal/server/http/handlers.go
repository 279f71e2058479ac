package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncobrief/oncobrief/internal/digest"
	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
	"github.com/oncobrief/oncobrief/internal/topic"
)

// maxRequestBodySize bounds JSON request bodies.
const maxRequestBodySize = 1 << 20

// dateFormat is the wire format for request date ranges.
const dateFormat = "2006-01-02"

// requestLogger returns the server logger annotated with the request's
// correlation ID.
func (s *Server) requestLogger(r *http.Request) zerolog.Logger {
	return s.logger.With().Str("request_id", observability.RequestIDFromContext(r.Context())).Logger()
}

// decodeJSON reads and unmarshals a bounded request body.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON request body")
	}
	return nil
}

// validationMessage names the first failing request field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	field := verrs[0].Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if verrs[0].Tag() == "email" {
		return "Invalid email address"
	}
	return field + " is required"
}

type dateRangeRequest struct {
	Start string `json:"startDate" validate:"required"`
	End   string `json:"endDate" validate:"required"`
}

type generateDigestRequest struct {
	Journals  []string          `json:"journals" validate:"required,min=1,dive,required"`
	DateRange *dateRangeRequest `json:"dateRange,omitempty"`
}

type generateDigestResponse struct {
	Success      bool              `json:"success"`
	DigestID     *string           `json:"digestId"`
	Digest       *domain.Digest    `json:"digest"`
	Articles     []*domain.Article `json:"articles"`
	TotalResults int               `json:"totalResults"`
	Message      string            `json:"message,omitempty"`
}

// generateDigest handles POST /api/generateDigest.
func (s *Server) generateDigest(w http.ResponseWriter, r *http.Request) {
	var req generateDigestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	genReq := digest.Request{Journals: req.Journals}
	if req.DateRange != nil {
		start, err := time.Parse(dateFormat, req.DateRange.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dateRange.startDate, expected YYYY-MM-DD")
			return
		}
		end, err := time.Parse(dateFormat, req.DateRange.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dateRange.endDate, expected YYYY-MM-DD")
			return
		}
		genReq.StartDate = &start
		genReq.EndDate = &end
	}

	result, err := s.digests.Generate(r.Context(), genReq)
	if err != nil {
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Msg("digest generation failed")
		writeDomainError(w, err)
		return
	}

	resp := generateDigestResponse{
		Success:      true,
		Digest:       result.Digest,
		Articles:     result.Articles,
		TotalResults: result.TotalResults,
		Message:      result.Message,
	}
	if resp.Articles == nil {
		resp.Articles = []*domain.Article{}
	}
	if result.Persisted() {
		id := result.Digest.ID.String()
		resp.DigestID = &id
	}

	writeJSON(w, http.StatusOK, resp)
}

// timeRangeRequest is the wire form of the searched publication window:
// {type:"relative", months:N} or {type:"absolute", start, end}. Omitted,
// it defaults to the last six months.
type timeRangeRequest struct {
	Type   string `json:"type,omitempty"`
	Months int    `json:"months,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

type topicSearchRequest struct {
	Topic                 string            `json:"topic" validate:"required"`
	AdditionalKeywords    []string          `json:"additionalKeywords,omitempty"`
	Journals              []string          `json:"journals,omitempty"`
	TimeRange             *timeRangeRequest `json:"timeRange,omitempty"`
	FallbackToAllJournals bool              `json:"fallbackToAllJournals,omitempty"`
}

type topicSearchResponse struct {
	Success              bool                 `json:"success"`
	SearchID             string               `json:"searchId"`
	SearchParams         *domain.TopicSearch  `json:"searchParams"`
	Articles             []domain.Article     `json:"articles"`
	Summary              *domain.TopicSummary `json:"summary,omitempty"`
	TotalResults         int                  `json:"totalResults"`
	JournalFilterRemoved bool                 `json:"journalFilterRemoved"`
}

// topicSearch handles POST /api/topicSearch.
func (s *Server) topicSearch(w http.ResponseWriter, r *http.Request) {
	var req topicSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var timeRange topic.TimeRange
	if req.TimeRange != nil {
		timeRange.Type = req.TimeRange.Type
		timeRange.Months = req.TimeRange.Months
		if req.TimeRange.Start != "" {
			start, err := time.Parse(dateFormat, req.TimeRange.Start)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid timeRange.start, expected YYYY-MM-DD")
				return
			}
			timeRange.Start = start
		}
		if req.TimeRange.End != "" {
			end, err := time.Parse(dateFormat, req.TimeRange.End)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid timeRange.end, expected YYYY-MM-DD")
				return
			}
			timeRange.End = end
		}
	}

	result, err := s.topics.Explore(r.Context(), topic.Request{
		Topic:                 req.Topic,
		AdditionalKeywords:    req.AdditionalKeywords,
		Journals:              req.Journals,
		TimeRange:             timeRange,
		FallbackToAllJournals: req.FallbackToAllJournals,
	})
	if err != nil {
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Str("topic", req.Topic).Msg("topic search failed")
		writeDomainError(w, err)
		return
	}

	resp := topicSearchResponse{
		Success:              true,
		SearchParams:         result.Search,
		Articles:             result.Articles,
		Summary:              result.Summary,
		JournalFilterRemoved: result.JournalFilterRemoved,
	}
	if result.Search != nil {
		resp.SearchID = result.Search.ID.String()
		resp.TotalResults = result.Search.TotalResults
	}
	if resp.Articles == nil {
		resp.Articles = []domain.Article{}
	}

	writeJSON(w, http.StatusOK, resp)
}

type generatePodcastRequest struct {
	DigestID    string            `json:"digestId" validate:"required"`
	DigestTitle string            `json:"digestTitle,omitempty"`
	Articles    []*domain.Article `json:"articles,omitempty"`
}

type generatePodcastResponse struct {
	Success   bool   `json:"success"`
	AudioURL  string `json:"audioUrl"`
	ScriptURL string `json:"scriptUrl"`
	Script    string `json:"script"`
	Message   string `json:"message,omitempty"`
}

// generatePodcast handles POST /api/generatePodcast.
func (s *Server) generatePodcast(w http.ResponseWriter, r *http.Request) {
	if s.podcasts == nil {
		writeError(w, http.StatusServiceUnavailable, "podcast synthesis is disabled")
		return
	}

	var req generatePodcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	digestID, err := uuid.Parse(req.DigestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid digestId")
		return
	}

	ctx := r.Context()

	// Articles can ride along in the request or come from storage.
	articles := req.Articles
	if len(articles) == 0 {
		articles, err = s.repos.Articles.GetByDigestID(ctx, digestID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if len(articles) == 0 {
		writeError(w, http.StatusBadRequest, "no articles provided")
		return
	}

	d := &domain.Digest{ID: digestID, Title: req.DigestTitle}
	if d.Title == "" {
		if stored, err := s.repos.Digests.Get(ctx, digestID); err == nil {
			d.Title = stored.Title
		}
	}

	podcast, err := s.podcasts.GenerateDigestPodcast(ctx, d, articles)
	if err != nil {
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Str("digest_id", req.DigestID).Msg("podcast generation failed")
		writeDomainError(w, err)
		return
	}

	if err := s.repos.Podcasts.Upsert(ctx, podcast); err != nil {
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Str("digest_id", req.DigestID).Msg("podcast persistence failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generatePodcastResponse{
		Success:   true,
		AudioURL:  podcast.AudioURL,
		ScriptURL: podcast.ScriptURL,
		Script:    podcast.Script,
		Message:   "Podcast generated successfully",
	})
}

type researchSummaryPayload struct {
	Topic    string `json:"topic"`
	Sections struct {
		Overview             string `json:"overview"`
		KeyFindings          string `json:"keyFindings"`
		ResearchTrends       string `json:"researchTrends"`
		ClinicalImplications string `json:"clinicalImplications"`
		FutureDirections     string `json:"futureDirections"`
	} `json:"sections"`
}

type generateResearchPodcastRequest struct {
	Summary *researchSummaryPayload `json:"summary" validate:"required"`
}

// generateResearchPodcast handles POST /api/generateResearchPodcast.
func (s *Server) generateResearchPodcast(w http.ResponseWriter, r *http.Request) {
	if s.podcasts == nil {
		writeError(w, http.StatusServiceUnavailable, "podcast synthesis is disabled")
		return
	}

	var req generateResearchPodcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Summary == nil {
		writeError(w, http.StatusBadRequest, "research summary data is required")
		return
	}

	summary := &domain.TopicSummary{
		Overview:             req.Summary.Sections.Overview,
		KeyFindings:          req.Summary.Sections.KeyFindings,
		ResearchTrends:       req.Summary.Sections.ResearchTrends,
		ClinicalImplications: req.Summary.Sections.ClinicalImplications,
		FutureDirections:     req.Summary.Sections.FutureDirections,
	}

	podcast, err := s.podcasts.GenerateResearchPodcast(r.Context(), req.Summary.Topic, summary)
	if err != nil {
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Msg("research podcast generation failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"audioUrl":  podcast.AudioURL,
		"scriptUrl": podcast.ScriptURL,
	})
}

type sendEmailRequest struct {
	DigestID         string            `json:"digestId" validate:"required"`
	RecipientEmail   string            `json:"recipientEmail" validate:"required,email"`
	ArticlesOverride []*domain.Article `json:"articlesOverride,omitempty"`
	PodcastOverride  *domain.Podcast   `json:"podcastOverride,omitempty"`
}

// sendEmail handles POST /api/sendEmail.
func (s *Server) sendEmail(w http.ResponseWriter, r *http.Request) {
	if s.emails == nil {
		writeError(w, http.StatusServiceUnavailable, "email delivery is disabled")
		return
	}

	var req sendEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DigestID == "" {
		writeError(w, http.StatusBadRequest, "Missing digestId parameter")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	digestID, err := uuid.Parse(req.DigestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid digestId")
		return
	}

	ctx := r.Context()

	// The digest may be missing when articles ride along in the request;
	// fall back to a titled shell.
	d, err := s.repos.Digests.Get(ctx, digestID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			writeDomainError(w, err)
			return
		}
		now := time.Now()
		d = &domain.Digest{ID: digestID, Title: "Weekly Oncology Digest", WeekStart: now, WeekEnd: now}
	}

	articles := req.ArticlesOverride
	if len(articles) == 0 {
		articles, err = s.repos.Articles.GetByDigestID(ctx, digestID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if len(articles) == 0 {
		writeError(w, http.StatusNotFound, "No articles found for this digest")
		return
	}

	podcast := req.PodcastOverride
	if podcast == nil || podcast.AudioURL == "" {
		if stored, err := s.repos.Podcasts.GetByDigestID(ctx, digestID); err == nil {
			podcast = stored
		} else {
			podcast = nil
		}
	}

	if err := s.emails.SendDigest(ctx, req.RecipientEmail, d, articles, podcast); err != nil {
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Str("digest_id", req.DigestID).Msg("email delivery failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email sent successfully to " + req.RecipientEmail,
	})
}

// testEmail handles GET /api/test-email?to=.
func (s *Server) testEmail(w http.ResponseWriter, r *http.Request) {
	if s.emails == nil {
		writeError(w, http.StatusServiceUnavailable, "email delivery is disabled")
		return
	}

	to := r.URL.Query().Get("to")
	if err := s.emails.SendTest(r.Context(), to); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Invalid email address. Use ?to=your@email.com")
			return
		}
		reqLog := s.requestLogger(r)
		reqLog.Error().Err(err).Msg("test email failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Test email sent successfully to " + to,
	})
}

// testEnv handles GET /api/test-env: a masked report of effective
// configuration for deployment troubleshooting.
func (s *Server) testEnv(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"env":     s.cfg.EnvReport,
		"message": "Configuration loaded. Check if the values match what you expected.",
	})
}
