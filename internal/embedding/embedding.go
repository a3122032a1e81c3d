// Package embedding wraps the external embedding service behind a thin
// adapter that guarantees every returned vector is L2-normalized. The
// similarity index compares vectors by inner product, which is only a
// valid cosine-similarity proxy when both sides are unit length.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/detector"
)

const defaultEmbeddingURL = "http://localhost:8000"

// ErrNoEmbedding is returned when the embedding server cannot produce a
// vector for the given crop.
var ErrNoEmbedding = errors.New("no embedding returned")

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a new embedding client. dim is the expected vector
// dimension; responses with a different dimension are rejected.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}
}

// embeddingResponse represents the response from the embedding server.
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Embed computes the embedding for a face crop. The returned vector is
// L2-normalized and owned by the caller; the crop is not retained.
func (c *Client) Embed(ctx context.Context, crop []byte) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", crop)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	if c.dim > 0 && len(embResp.Embedding) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embResp.Embedding), c.dim)
	}

	vec := make([]float32, len(embResp.Embedding))
	copy(vec, embResp.Embedding)
	if err := Normalize(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Dim returns the expected embedding dimension.
func (c *Client) Dim() int {
	return c.dim
}

// Normalize scales the vector to unit L2 length in place.
// A zero vector cannot be normalized and is reported as an error.
func Normalize(vec []float32) error {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return errors.New("cannot normalize zero-length embedding")
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return nil
}

// postMultipartImage posts the crop as a multipart form to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	h.Set("Content-Type", detector.DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
