package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		vec     []float32
		wantErr bool
	}{
		{"simple", []float32{3, 4}, false},
		{"already unit", []float32{1, 0, 0}, false},
		{"negative components", []float32{-2, 2, -2, 2}, false},
		{"zero vector", []float32{0, 0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize(tt.vec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error: %v", err)
			}
			var sum float64
			for _, v := range tt.vec {
				sum += float64(v) * float64(v)
			}
			if math.Abs(math.Sqrt(sum)-1.0) > 1e-6 {
				t.Errorf("norm after Normalize = %v, want 1.0", math.Sqrt(sum))
			}
		})
	}
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"dim":       4,
			"embedding": []float32{2, 0, 0, 0}, // server does not normalize
			"model":     "facenet512",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 4)
	vec, err := client.Embed(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("got %d dims, want 4", len(vec))
	}
	if math.Abs(float64(vec[0])-1.0) > 1e-6 {
		t.Errorf("vec[0] = %v, want 1.0 after normalization", vec[0])
	}
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"dim": 0, "embedding": []float32{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 4)
	_, err := client.Embed(context.Background(), []byte("crop"))
	if !errors.Is(err, ErrNoEmbedding) {
		t.Fatalf("expected ErrNoEmbedding, got %v", err)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"dim": 3, "embedding": []float32{1, 2, 3}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 512)
	if _, err := client.Embed(context.Background(), []byte("crop")); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
