package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"medrag/internal/answer"
	"medrag/internal/retrieval"
)

// SearchHandler handles HTTP requests for retrieval and answering.
type SearchHandler struct {
	RetrievalService *retrieval.Service
	AnswerService    *answer.Service
}

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold"`
}

type askRequest struct {
	Question  string   `json:"question"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold"`
}

func optionsFrom(limit int, threshold *float64) retrieval.Options {
	opts := retrieval.Options{Limit: limit}
	if threshold != nil {
		opts.Threshold = *threshold
		opts.HasThreshold = true
	}
	return opts
}

// Search handles POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "Field 'query' is required")
		return
	}

	resp, err := h.RetrievalService.Search(r.Context(), req.Query, optionsFrom(req.Limit, req.Threshold))
	if err != nil {
		logrus.WithError(err).Error("handler: search failed")
		if errors.Is(err, retrieval.ErrSearchUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Search backend unavailable")
		} else {
			respondError(w, http.StatusInternalServerError, "Search failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Ask handles POST /api/ask
func (h *SearchHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "Field 'question' is required")
		return
	}

	resp, err := h.AnswerService.Ask(r.Context(), req.Question, optionsFrom(req.Limit, req.Threshold))
	if err != nil {
		logrus.WithError(err).Error("handler: ask failed")
		if errors.Is(err, retrieval.ErrSearchUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Search backend unavailable")
		} else {
			respondError(w, http.StatusInternalServerError, "Failed to answer question")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
