package index

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

const snapshotVersion = 1

// snapshot is the on-disk representation of the index: the full vector set
// in insertion order. It is rewritten whole on every append, which is fine
// while the corpus stays small; a log-structured format would need a new
// snapshot version.
type snapshot struct {
	Version int
	Dim     int
	Vectors [][]float32
}

// Meta is the JSON sidecar written next to the snapshot, mainly for
// operators to inspect without decoding the gob file.
type Meta struct {
	Count     int       `json:"count"`
	Dim       int       `json:"dim"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// LoadOrFail loads the persisted index from path. A missing snapshot is an
// operator error reported as ErrIndexNotFound: starting from an implicitly
// empty index would silently forget every known identity.
func LoadOrFail(path string) (*Index, error) {
	snap, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		path:    path,
		dim:     snap.Dim,
		vectors: snap.Vectors,
		graph:   newGraph(),
	}
	for rank, vec := range snap.Vectors {
		idx.graph.Add(hnsw.MakeNode(rank, vec))
	}
	return idx, nil
}

// Bootstrap creates a new empty index snapshot at path. It refuses to
// overwrite an existing snapshot; this is the explicit first-run action
// that LoadOrFail demands.
func Bootstrap(path string, dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("index already exists at %s", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking index path: %w", err)
	}

	snap := snapshot{Version: snapshotVersion, Dim: dim}
	if err := writeSnapshot(path, snap); err != nil {
		return nil, fmt.Errorf("writing empty index: %w", err)
	}

	return &Index{path: path, dim: dim, graph: newGraph()}, nil
}

// readSnapshot decodes and validates the snapshot file at path.
func readSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{}, fmt.Errorf("%w at %s (run bootstrap to create one)", ErrIndexNotFound, path)
		}
		return snapshot{}, fmt.Errorf("reading index snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return snapshot{}, fmt.Errorf("decoding index snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return snapshot{}, fmt.Errorf("unsupported index snapshot version %d", snap.Version)
	}
	if snap.Dim <= 0 {
		return snapshot{}, fmt.Errorf("invalid embedding dimension %d in snapshot", snap.Dim)
	}
	for rank, vec := range snap.Vectors {
		if len(vec) != snap.Dim {
			return snapshot{}, fmt.Errorf("entry %d has dimension %d, want %d", rank, len(vec), snap.Dim)
		}
	}
	return snap, nil
}

// writeSnapshot atomically replaces the snapshot file and its meta sidecar.
// The rename guarantees readers never observe a half-written index.
func writeSnapshot(path string, snap snapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encoding index snapshot: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing index snapshot: %w", err)
	}

	meta := Meta{
		Count:     len(snap.Vectors),
		Dim:       snap.Dim,
		UpdatedAt: time.Now().UTC(),
		Version:   snap.Version,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", metaData, 0o644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

// LoadMeta reads the meta sidecar without decoding the full snapshot.
func LoadMeta(path string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return meta, fmt.Errorf("reading index metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("unmarshaling index metadata: %w", err)
	}
	return meta, nil
}
