package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"medrag/internal/ingest"
)

// defaultIngestCount bounds a run when the caller does not say how many
// articles to pull.
const defaultIngestCount = 10

// IngestHandler handles HTTP requests for the ingestion pipeline.
type IngestHandler struct {
	IngestService *ingest.Service
}

type ingestRequest struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Start handles POST /api/ingest
func (h *IngestHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		respondError(w, http.StatusBadRequest, "Field 'source' is required")
		return
	}
	if req.Count <= 0 {
		req.Count = defaultIngestCount
	}

	if err := h.IngestService.Start(req.Source, req.Count); err != nil {
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "An ingestion run is already in progress")
			return
		}
		logrus.WithError(err).Error("handler: failed to start ingestion")
		respondError(w, http.StatusInternalServerError, "Failed to start ingestion")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"message": "Ingestion started",
		"source":  req.Source,
		"count":   req.Count,
	})
}

// Status handles GET /api/ingest/status
func (h *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.IngestService.Status())
}

// Cancel handles DELETE /api/ingest
func (h *IngestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.IngestService.Cancel() {
		respondError(w, http.StatusConflict, "No ingestion run is in progress")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Cancellation requested"})
}

// Backfill handles POST /api/ingest/backfill
func (h *IngestHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if r.Body != nil {
		// Body is optional; decode errors on an empty body are fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}

	report, err := h.IngestService.Backfill(r.Context(), req.Limit)
	if err != nil {
		logrus.WithError(err).Error("handler: backfill failed")
		respondError(w, http.StatusInternalServerError, "Backfill failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
