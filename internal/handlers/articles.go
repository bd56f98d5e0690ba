package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"medrag/internal/ports"
	"medrag/internal/stats"
)

// ArticleHandler handles article lookup and index statistics.
type ArticleHandler struct {
	Index        ports.SearchIndex
	StatsService *stats.Service
}

// GetByDOI handles GET /api/articles/{doi}
//
// DOIs contain slashes, so the route parameter arrives URL-encoded.
func (h *ArticleHandler) GetByDOI(w http.ResponseWriter, r *http.Request) {
	doi := chi.URLParam(r, "doi")
	if decoded, err := url.PathUnescape(doi); err == nil {
		doi = decoded
	}
	if doi == "" {
		respondError(w, http.StatusBadRequest, "DOI is required")
		return
	}

	article, err := h.Index.GetByDOI(r.Context(), doi)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Article not found")
			return
		}
		logrus.WithError(err).Error("handler: failed to get article")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve article")
		return
	}

	respondJSON(w, http.StatusOK, article)
}

// Stats handles GET /api/stats
func (h *ArticleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	indexStats, err := h.StatsService.Stats(r.Context())
	if err != nil {
		logrus.WithError(err).Error("handler: failed to get stats")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve index statistics")
		return
	}
	respondJSON(w, http.StatusOK, indexStats)
}
