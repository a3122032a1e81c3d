package handlers

import (
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/kozaktomas/face-recognizer/internal/recognizer"
)

// RecognizeHandler handles face recognition endpoints.
type RecognizeHandler struct {
	service RecognitionService
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(service RecognitionService) *RecognizeHandler {
	return &RecognizeHandler{service: service}
}

// faceItem is the per-face API representation of a decision.
type faceItem struct {
	IsReturning bool    `json:"is_returning"`
	Similarity  float64 `json:"similarity"`
	Rank        int     `json:"rank"`
	SavedPath   string  `json:"saved_path,omitempty"`
	Failed      bool    `json:"failed,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// imageItem is the per-image API representation.
type imageItem struct {
	Filename string     `json:"filename"`
	NumFaces int        `json:"num_faces"`
	Results  []faceItem `json:"results"`
}

// toImageItem converts an orchestrator result to its API shape.
func toImageItem(res recognizer.ImageResult) imageItem {
	item := imageItem{
		Filename: res.Filename,
		NumFaces: res.FaceCount,
		Results:  make([]faceItem, 0, len(res.Results)),
	}
	for _, face := range res.Results {
		item.Results = append(item.Results, faceItem{
			IsReturning: face.Outcome == recognizer.OutcomeReturning,
			Similarity:  face.Similarity,
			Rank:        face.Rank,
			SavedPath:   face.SavedPath,
			Failed:      face.Outcome == recognizer.OutcomeFailed,
			Reason:      face.Reason,
		})
	}
	return item
}

// readUpload reads one multipart file fully into memory. A read failure is
// treated the same as a malformed image: the caller gets an empty payload
// and the recognizer reports zero faces for it.
func readUpload(fh *multipart.FileHeader) []byte {
	f, err := fh.Open()
	if err != nil {
		log.Printf("upload %s: open failed: %v", sanitizeForLog(fh.Filename), err)
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Printf("upload %s: read failed: %v", sanitizeForLog(fh.Filename), err)
		return nil
	}
	return data
}

// Recognize handles a single-image recognition request.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}

	fh := files[0]
	result := h.service.RecognizeImage(r.Context(), readUpload(fh), fh.Filename)
	respondJSON(w, http.StatusOK, toImageItem(result))
}

// RecognizeBatch handles a multi-image recognition request. The response
// enumerates one item per submitted file, in submission order; malformed
// entries come back with zero faces and never abort sibling images.
func (h *RecognizeHandler) RecognizeBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	items := make([]recognizer.BatchItem, 0, len(files))
	for _, fh := range files {
		items = append(items, recognizer.BatchItem{
			Filename: fh.Filename,
			Data:     readUpload(fh),
		})
	}

	results := h.service.RecognizeBatch(r.Context(), items)
	out := make([]imageItem, 0, len(results))
	for _, res := range results {
		out = append(out, toImageItem(res))
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": out})
}
