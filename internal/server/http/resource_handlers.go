package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oncobrief/oncobrief/internal/domain"
)

type addJournalRequest struct {
	Name string `json:"name" validate:"required"`
}

// listJournals handles GET /api/journals.
func (s *Server) listJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := s.repos.Journals.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if journals == nil {
		journals = []*domain.Journal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "journals": journals})
}

// addJournal handles POST /api/journals.
func (s *Server) addJournal(w http.ResponseWriter, r *http.Request) {
	var req addJournalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	journal, err := s.repos.Journals.Add(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "journal": journal})
}

// removeJournal handles DELETE /api/journals/{journalID}.
func (s *Server) removeJournal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "journalID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid journal id")
		return
	}

	if err := s.repos.Journals.Remove(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// listArticles handles GET /api/articles.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.repos.Articles.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if articles == nil {
		articles = []*domain.Article{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "articles": articles})
}

// repairDigest handles POST /api/digests/{digestID}/repair: attaches
// orphaned articles to the given digest.
func (s *Server) repairDigest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.digestIDParam(w, r)
	if !ok {
		return
	}

	if _, err := s.repos.Digests.Get(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	repaired, err := s.digests.RepairOrphans(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "repaired": repaired})
}

// listDigests handles GET /api/digests.
func (s *Server) listDigests(w http.ResponseWriter, r *http.Request) {
	digests, err := s.repos.Digests.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if digests == nil {
		digests = []*domain.Digest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "digests": digests})
}

// getDigest handles GET /api/digests/{digestID}.
func (s *Server) getDigest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.digestIDParam(w, r)
	if !ok {
		return
	}

	d, err := s.repos.Digests.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "digest": d})
}

// getDigestArticles handles GET /api/digests/{digestID}/articles.
func (s *Server) getDigestArticles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.digestIDParam(w, r)
	if !ok {
		return
	}

	articles, err := s.repos.Articles.GetByDigestID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if articles == nil {
		articles = []*domain.Article{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "articles": articles})
}

// getDigestPodcast handles GET /api/digests/{digestID}/podcast.
func (s *Server) getDigestPodcast(w http.ResponseWriter, r *http.Request) {
	id, ok := s.digestIDParam(w, r)
	if !ok {
		return
	}

	podcast, err := s.repos.Podcasts.GetByDigestID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "podcast": podcast})
}

func (s *Server) digestIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "digestID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid digest id")
		return uuid.Nil, false
	}
	return id, true
}
