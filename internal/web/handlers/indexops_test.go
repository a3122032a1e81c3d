package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/enrollstore"
)

func TestIndexReload(t *testing.T) {
	handler := NewIndexHandler(&fakeService{size: 42})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reload", nil)
	recorder := httptest.NewRecorder()
	handler.Reload(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	if resp["size"] != 42 {
		t.Errorf("size = %d, want 42", resp["size"])
	}
}

func TestIndexReloadFailure(t *testing.T) {
	handler := NewIndexHandler(&fakeService{reloadErr: errors.New("snapshot vanished")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reload", nil)
	recorder := httptest.NewRecorder()
	handler.Reload(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestIndexStats(t *testing.T) {
	handler := NewIndexHandler(&fakeService{size: 7, dim: 512, path: "/data/customer_index.bin"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil)
	recorder := httptest.NewRecorder()
	handler.Stats(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Size int    `json:"size"`
		Dim  int    `json:"dim"`
		Path string `json:"path"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Size != 7 || resp.Dim != 512 || resp.Path != "/data/customer_index.bin" {
		t.Errorf("stats = %+v, want {7 512 /data/customer_index.bin}", resp)
	}
}

func TestEnrollments(t *testing.T) {
	handler := NewIndexHandler(&fakeService{
		records: []enrollstore.Record{
			{Rank: 0, Path: "known_faces/a.jpg", EnrolledAt: time.Now().UTC()},
			{Rank: 1, Path: "known_faces/b.jpg", EnrolledAt: time.Now().UTC()},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrollments", nil)
	recorder := httptest.NewRecorder()
	handler.Enrollments(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Count   int                  `json:"count"`
		Records []enrollstore.Record `json:"records"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 2 || len(resp.Records) != 2 {
		t.Fatalf("count = %d with %d records, want 2/2", resp.Count, len(resp.Records))
	}
	if resp.Records[1].Rank != 1 {
		t.Errorf("second record rank = %d, want 1", resp.Records[1].Rank)
	}
}
