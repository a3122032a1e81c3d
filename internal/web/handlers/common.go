package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/enrollstore"
	"github.com/kozaktomas/face-recognizer/internal/recognizer"
)

// maxUploadSize caps a recognize request's multipart form at 64 MB.
const maxUploadSize = 64 << 20

// RecognitionService is the part of the recognizer the handlers need.
// Narrowed to an interface so tests can substitute a fake.
type RecognitionService interface {
	RecognizeImage(ctx context.Context, data []byte, filename string) recognizer.ImageResult
	RecognizeBatch(ctx context.Context, items []recognizer.BatchItem) []recognizer.ImageResult
	Reload() (int, error)
	IndexSize() int
	IndexDim() int
	IndexPath() string
	Enrollments() ([]enrollstore.Record, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
