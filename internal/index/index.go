// Package index implements the enrolled-identity vector store: an
// append-only collection of L2-normalized face embeddings supporting
// nearest-neighbor search by inner product. Every append is persisted to
// disk before it becomes visible in memory, so the in-memory index and
// the on-disk snapshot never diverge across a successful enrollment.
package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// hnswMaxNeighbors is the M parameter of the HNSW graph.
	hnswMaxNeighbors = 16

	// flatSearchLimit is the entry count up to which search runs an exact
	// inner-product scan. Above it the HNSW graph shortlists candidates
	// that are then rescored exactly.
	flatSearchLimit = 2048

	// graphCandidates is the shortlist size requested from the HNSW graph
	// before exact rescoring.
	graphCandidates = 64
)

// ErrIndexNotFound is returned when no persisted index exists at the
// configured path. The process never bootstraps an empty index implicitly;
// first-run creation is an explicit administrative action (see Bootstrap).
var ErrIndexNotFound = errors.New("similarity index not found")

// Result is the nearest entry found for a query vector.
type Result struct {
	Similarity float64 // inner product, clamped to [-1, 1]
	Rank       int     // zero-based insertion position of the matched entry
}

// Index is the similarity index. All methods are safe for concurrent use;
// a single mutex serializes searches and appends so that callers holding
// a search-decide-append sequence observe a consistent view.
type Index struct {
	mu      sync.Mutex
	path    string
	dim     int
	vectors [][]float32
	graph   *hnsw.Graph[int]
}

// newGraph creates an empty HNSW graph configured for cosine distance.
func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Size returns the current entry count.
func (idx *Index) Size() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.vectors)
}

// Dim returns the embedding dimension of the index.
func (idx *Index) Dim() int {
	return idx.dim
}

// Path returns the snapshot path the index persists to.
func (idx *Index) Path() string {
	return idx.path
}

// Search returns the single nearest entry to the query by inner product.
// The second return value is false iff the index holds zero entries.
// Ties between equidistant entries go to the lowest rank.
func (idx *Index) Search(query []float32) (Result, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(query) != idx.dim {
		return Result{}, false, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), idx.dim)
	}
	if len(idx.vectors) == 0 {
		return Result{}, false, nil
	}

	if len(idx.vectors) <= flatSearchLimit {
		return idx.searchExact(query), true, nil
	}
	return idx.searchGraph(query), true, nil
}

// searchExact scans every entry. Iteration in insertion order makes the
// lowest rank win on ties. Caller must hold idx.mu.
func (idx *Index) searchExact(query []float32) Result {
	best := Result{Similarity: -2, Rank: -1}
	for rank, vec := range idx.vectors {
		sim := innerProduct(query, vec)
		if sim > best.Similarity {
			best = Result{Similarity: sim, Rank: rank}
		}
	}
	best.Similarity = clampSimilarity(best.Similarity)
	return best
}

// searchGraph shortlists candidates via the HNSW graph and rescores them
// exactly, keeping the lowest rank among equal scores. Caller must hold idx.mu.
func (idx *Index) searchGraph(query []float32) Result {
	neighbors := idx.graph.Search(query, graphCandidates)
	if len(neighbors) == 0 {
		// Graph search cannot come back empty for a non-empty index, but
		// fall back to the exact scan rather than report no match.
		return idx.searchExact(query)
	}

	best := Result{Similarity: -2, Rank: -1}
	for _, n := range neighbors {
		sim := innerProduct(query, idx.vectors[n.Key])
		if sim > best.Similarity || (sim == best.Similarity && n.Key < best.Rank) {
			best = Result{Similarity: sim, Rank: n.Key}
		}
	}
	best.Similarity = clampSimilarity(best.Similarity)
	return best
}

// Append persists the snapshot including the new vector, then appends the
// entry in memory and returns its assigned rank (= prior entry count).
// On persistence failure the in-memory index is left untouched and the
// enrollment must not be reported as successful.
func (idx *Index) Append(vec []float32) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(vec) != idx.dim {
		return 0, fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vec), idx.dim)
	}

	owned := make([]float32, len(vec))
	copy(owned, vec)

	snap := snapshot{
		Version: snapshotVersion,
		Dim:     idx.dim,
		Vectors: append(idx.vectors, owned),
	}
	if err := writeSnapshot(idx.path, snap); err != nil {
		return 0, fmt.Errorf("persisting index: %w", err)
	}

	rank := len(idx.vectors)
	idx.vectors = snap.Vectors
	idx.graph.Add(hnsw.MakeNode(rank, owned))
	return rank, nil
}

// innerProduct accumulates in float64 to keep the score stable across
// repeated identical queries.
func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// clampSimilarity bounds the score to [-1, 1] against floating point drift.
func clampSimilarity(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
