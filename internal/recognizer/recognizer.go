// Package recognizer decides, per detected face, whether the person has
// been seen before. It owns the process-wide similarity index singleton
// and sequences searches and enrollments so that a face enrolled earlier
// in a batch is visible to every later search in that batch.
package recognizer

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/enrollstore"
	"github.com/kozaktomas/face-recognizer/internal/facefilter"
	"github.com/kozaktomas/face-recognizer/internal/index"
)

// Outcome classifies the per-face decision.
type Outcome string

const (
	// OutcomeReturning means the face matched an enrolled identity.
	OutcomeReturning Outcome = "returning"
	// OutcomeNew means the face was enrolled as a new identity.
	OutcomeNew Outcome = "new"
	// OutcomeFailed means the face could not be processed or its enrollment
	// could not be persisted. Never conflated with Returning or New.
	OutcomeFailed Outcome = "failed"
)

// FaceResult is the decision for one surviving face crop.
type FaceResult struct {
	Outcome    Outcome `json:"outcome"`
	Similarity float64 `json:"similarity"`
	// Rank is the matched rank for Returning, the enrolled rank for New,
	// and -1 for Failed.
	Rank      int    `json:"rank"`
	SavedPath string `json:"saved_path,omitempty"` // set for New
	Reason    string `json:"reason,omitempty"`     // set for Failed
}

// ImageResult is the outcome for one submitted image. A malformed or
// undecodable image yields zero faces, never an error for the batch.
type ImageResult struct {
	Filename  string       `json:"filename"`
	FaceCount int          `json:"num_faces"`
	Results   []FaceResult `json:"results"`
}

// BatchItem is one image payload within a batch.
type BatchItem struct {
	Filename string
	Data     []byte
}

// Detector yields face detections for an image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]detector.Face, error)
}

// Embedder computes an L2-normalized embedding for a face crop.
type Embedder interface {
	Embed(ctx context.Context, crop []byte) ([]float32, error)
}

// Options configure the decision policy.
type Options struct {
	// Threshold is the minimum similarity (exclusive) for Returning.
	Threshold float64
	Filter    facefilter.Options
}

// Service is the matching and enrollment orchestrator. Exactly one instance
// exists per process; it is constructed eagerly at startup and shared by
// reference among request handlers.
type Service struct {
	detector Detector
	embedder Embedder
	store    *enrollstore.Store
	opts     Options

	// mu guards the index pointer and makes each face's
	// search-decide-append sequence atomic. Without it, two concurrent
	// sightings of the same new person would both enroll.
	mu  sync.Mutex
	idx *index.Index
}

// NewService creates the orchestrator around an already loaded index.
func NewService(det Detector, emb Embedder, idx *index.Index, store *enrollstore.Store, opts Options) *Service {
	return &Service{
		detector: det,
		embedder: emb,
		store:    store,
		opts:     opts,
		idx:      idx,
	}
}

// Reload replaces the index wholesale from its persisted snapshot (e.g.
// after an external compaction) and returns the new entry count.
func (s *Service) Reload() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := index.LoadOrFail(s.idx.Path())
	if err != nil {
		return 0, err
	}
	s.idx = idx
	return idx.Size(), nil
}

// IndexSize returns the current entry count of the shared index.
func (s *Service) IndexSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Size()
}

// IndexDim returns the embedding dimension of the shared index.
func (s *Service) IndexDim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Dim()
}

// IndexPath returns the snapshot path of the shared index.
func (s *Service) IndexPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Path()
}

// Enrollments returns the audit ledger of enrolled faces.
func (s *Service) Enrollments() ([]enrollstore.Record, error) {
	return s.store.Records()
}

// RecognizeBatch processes the images strictly sequentially, so enrollments
// from earlier images are visible to later searches in the same batch.
func (s *Service) RecognizeBatch(ctx context.Context, items []BatchItem) []ImageResult {
	results := make([]ImageResult, 0, len(items))
	for _, item := range items {
		results = append(results, s.RecognizeImage(ctx, item.Data, item.Filename))
	}
	return results
}

// RecognizeImage runs detection, filtering, embedding, and the match-or-enroll
// decision for every surviving face, in detection order. Failures local to
// the image produce a zero-face result instead of an error.
func (s *Service) RecognizeImage(ctx context.Context, data []byte, filename string) ImageResult {
	result := ImageResult{Filename: filename, Results: []FaceResult{}}
	if len(data) == 0 {
		return result
	}

	img, err := decodeImage(data)
	if err != nil {
		log.Printf("recognize %s: undecodable image: %v", filename, err)
		return result
	}
	bounds := img.Bounds()

	faces, err := s.detector.Detect(ctx, data)
	if err != nil {
		log.Printf("recognize %s: detection failed: %v", filename, err)
		return result
	}

	for candidate := range facefilter.Filter(faces, bounds.Dx(), bounds.Dy(), s.opts.Filter) {
		result.Results = append(result.Results, s.recognizeFace(ctx, img, candidate))
	}
	result.FaceCount = len(result.Results)
	return result
}

// recognizeFace crops and embeds outside the lock, then runs the atomic
// search-decide-append sequence under it.
func (s *Service) recognizeFace(ctx context.Context, img image.Image, candidate facefilter.Candidate) FaceResult {
	crop, err := encodeCrop(img, candidate.Rect)
	if err != nil {
		return failedResult(fmt.Sprintf("cropping face: %v", err))
	}

	emb, err := s.embedder.Embed(ctx, crop)
	if err != nil {
		return failedResult(fmt.Sprintf("embedding face: %v", err))
	}

	return s.decide(emb, crop)
}

// decide holds the lock across search, threshold decision, artifact save,
// and index append so the sequence is atomic per face. An empty index is
// reported with the explicit zero-similarity sentinel rather than skipping
// the search, keeping a uniform result shape.
func (s *Service) decide(emb []float32, crop []byte) FaceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	similarity := 0.0
	if s.idx.Size() > 0 {
		res, found, err := s.idx.Search(emb)
		if err != nil {
			return failedResult(fmt.Sprintf("searching index: %v", err))
		}
		if found {
			similarity = res.Similarity
			// Strictly greater than: a score of exactly Threshold enrolls.
			if similarity > s.opts.Threshold {
				return FaceResult{
					Outcome:    OutcomeReturning,
					Similarity: similarity,
					Rank:       res.Rank,
				}
			}
		}
	}

	// New identity. Save the artifact first so an entry is never enrolled
	// without a corresponding face image on disk.
	savedPath, err := s.store.SaveFace(crop)
	if err != nil {
		return failedResult(fmt.Sprintf("saving face artifact: %v", err))
	}

	rank, err := s.idx.Append(emb)
	if err != nil {
		// The index was not mutated; the orphaned artifact is harmless.
		return failedResult(fmt.Sprintf("enrolling face: %v", err))
	}

	if err := s.store.Record(rank, savedPath); err != nil {
		// The enrollment itself is durable; report the degraded ledger
		// write instead of pretending nothing happened.
		log.Printf("enrollment rank %d: ledger write failed: %v", rank, err)
		return failedResult(fmt.Sprintf("recording enrollment: %v", err))
	}

	return FaceResult{
		Outcome:    OutcomeNew,
		Similarity: similarity,
		Rank:       rank,
		SavedPath:  savedPath,
	}
}

func failedResult(reason string) FaceResult {
	return FaceResult{Outcome: OutcomeFailed, Similarity: 0, Rank: -1, Reason: reason}
}
