// Package detector talks to the external face detection service.
// The service is treated as an opaque oracle: it receives an image and
// returns bounding boxes with optional landmarks. Detection runs in
// non-strict mode so low-confidence faces are returned rather than
// turned into errors.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultDetectorURL = "http://localhost:8001"

// Point is a landmark position in raw pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Landmarks holds the facial landmark positions used by the profile filter.
type Landmarks struct {
	LeftEye  Point
	RightEye Point
	Nose     Point
}

// Face is a single detection returned by the detector service.
type Face struct {
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	Landmarks *Landmarks // nil when the detector reports no landmarks
}

// Client calls the face detection server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new detector client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// landmarksResponse carries landmark positions as [x, y] pairs.
type landmarksResponse struct {
	LeftEye  []float64 `json:"left_eye"`
	RightEye []float64 `json:"right_eye"`
	Nose     []float64 `json:"nose"`
}

// faceResponse represents a single face in the detector response.
type faceResponse struct {
	FaceIndex int                `json:"face_index"`
	BBox      []float64          `json:"bbox"`
	DetScore  float64            `json:"det_score"`
	Landmarks *landmarksResponse `json:"landmarks"`
}

// detectResponse represents the response from the detection endpoint.
type detectResponse struct {
	FacesCount int            `json:"faces_count"`
	Faces      []faceResponse `json:"faces"`
	Model      string         `json:"model"`
}

// Detect sends the image to the detection server and returns all detected
// faces in detection order. A response with zero faces is not an error.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	body, err := c.postMultipartImage(ctx, "/detect", imageData)
	if err != nil {
		return nil, err
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse detector response: %w", err)
	}

	faces := make([]Face, 0, len(detResp.Faces))
	for _, f := range detResp.Faces {
		face := Face{
			BBox:     f.BBox,
			DetScore: f.DetScore,
		}
		if f.Landmarks != nil {
			face.Landmarks = convertLandmarks(f.Landmarks)
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// convertLandmarks converts [x, y] pairs to Points, dropping incomplete sets.
func convertLandmarks(lm *landmarksResponse) *Landmarks {
	if len(lm.LeftEye) < 2 || len(lm.RightEye) < 2 || len(lm.Nose) < 2 {
		return nil
	}
	return &Landmarks{
		LeftEye:  Point{X: lm.LeftEye[0], Y: lm.LeftEye[1]},
		RightEye: Point{X: lm.RightEye[0], Y: lm.RightEye[1]},
		Nose:     Point{X: lm.Nose[0], Y: lm.Nose[1]},
	}
}

// postMultipartImage constructs a multipart form with the image data and posts
// it to the given endpoint. The part carries an explicit Content-Type header
// based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	// Non-strict detection: the server should tolerate low-confidence
	// detections instead of failing the request.
	if err := writer.WriteField("strict", "false"); err != nil {
		return nil, fmt.Errorf("failed to write strict field: %w", err)
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
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectMIMEType detects the MIME type from image data.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
