package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/enrollstore"
	"github.com/kozaktomas/face-recognizer/internal/recognizer"
)

// fakeService is a canned RecognitionService for handler tests.
type fakeService struct {
	batchCalls [][]recognizer.BatchItem
	reloadErr  error
	size       int
	dim        int
	path       string
	records    []enrollstore.Record
}

func (f *fakeService) RecognizeImage(_ context.Context, data []byte, filename string) recognizer.ImageResult {
	// Empty or missing payloads yield zero faces, like the real service.
	if len(data) == 0 {
		return recognizer.ImageResult{Filename: filename, Results: []recognizer.FaceResult{}}
	}
	return recognizer.ImageResult{
		Filename:  filename,
		FaceCount: 1,
		Results: []recognizer.FaceResult{
			{Outcome: recognizer.OutcomeReturning, Similarity: 0.91, Rank: 3},
		},
	}
}

func (f *fakeService) RecognizeBatch(ctx context.Context, items []recognizer.BatchItem) []recognizer.ImageResult {
	f.batchCalls = append(f.batchCalls, items)
	results := make([]recognizer.ImageResult, 0, len(items))
	for _, item := range items {
		results = append(results, f.RecognizeImage(ctx, item.Data, item.Filename))
	}
	return results
}

func (f *fakeService) Reload() (int, error) {
	if f.reloadErr != nil {
		return 0, f.reloadErr
	}
	return f.size, nil
}

func (f *fakeService) IndexSize() int    { return f.size }
func (f *fakeService) IndexDim() int     { return f.dim }
func (f *fakeService) IndexPath() string { return f.path }

func (f *fakeService) Enrollments() ([]enrollstore.Record, error) {
	return f.records, nil
}

// fileSpec is one file entry for a multipart test request.
type fileSpec struct {
	field    string
	filename string
	data     []byte
}

// multipartRequest builds a multipart POST request with the given files.
func multipartRequest(t *testing.T, path string, files []fileSpec) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}
