package handlers

import (
	"fmt"
	"net/http"
)

// IndexHandler exposes operational endpoints for the similarity index.
type IndexHandler struct {
	service RecognitionService
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(service RecognitionService) *IndexHandler {
	return &IndexHandler{service: service}
}

// Reload replaces the in-memory index wholesale from its persisted snapshot,
// e.g. after an external compaction.
func (h *IndexHandler) Reload(w http.ResponseWriter, r *http.Request) {
	size, err := h.service.Reload()
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to reload index: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"size": size})
}

// Stats reports the current index size and configuration.
func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"size": h.service.IndexSize(),
		"dim":  h.service.IndexDim(),
		"path": h.service.IndexPath(),
	})
}

// Enrollments returns the audit ledger of enrolled faces.
func (h *IndexHandler) Enrollments(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Enrollments()
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read enrollments: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}
