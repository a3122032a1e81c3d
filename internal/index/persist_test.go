package index

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrFailMissingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bin")
	_, err := LoadOrFail(path)
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("LoadOrFail() error = %v, want ErrIndexNotFound", err)
	}
}

func TestBootstrapRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	if _, err := Bootstrap(path, 4); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	if _, err := Bootstrap(path, 4); err == nil {
		t.Fatal("second Bootstrap() should refuse to overwrite")
	}
}

func TestBootstrapRejectsInvalidDim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	if _, err := Bootstrap(path, 0); err == nil {
		t.Fatal("Bootstrap() accepted dimension 0")
	}
}

func TestAppendSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, err := Bootstrap(path, 4)
	if err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	vec := []float32{0.5, 0.5, 0.5, 0.5}
	if _, err := idx.Append(vec); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	before := idx.Size()

	// Fresh load simulates a new process.
	reloaded, err := LoadOrFail(path)
	if err != nil {
		t.Fatalf("LoadOrFail() error: %v", err)
	}
	if reloaded.Size() != before {
		t.Errorf("reloaded Size() = %d, want %d", reloaded.Size(), before)
	}

	res, found, err := reloaded.Search(vec)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if !found {
		t.Fatal("reloaded index found no match for the enrolled vector")
	}
	if math.Abs(res.Similarity-1.0) > 1e-6 {
		t.Errorf("reloaded self-match similarity = %v, want ~1.0", res.Similarity)
	}
}

func TestAppendWritesMetaSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, err := Bootstrap(path, 2)
	if err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	if _, err := idx.Append([]float32{1, 0}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	meta, err := LoadMeta(path)
	if err != nil {
		t.Fatalf("LoadMeta() error: %v", err)
	}
	if meta.Count != 1 {
		t.Errorf("meta.Count = %d, want 1", meta.Count)
	}
	if meta.Dim != 2 {
		t.Errorf("meta.Dim = %d, want 2", meta.Dim)
	}
	if meta.UpdatedAt.IsZero() {
		t.Error("meta.UpdatedAt is zero")
	}
}

func TestAppendFailureLeavesMemoryUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	idx, err := Bootstrap(path, 2)
	if err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	if _, err := idx.Append([]float32{1, 0}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	// Remove the directory so the snapshot rewrite must fail.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove index dir: %v", err)
	}

	if _, err := idx.Append([]float32{0, 1}); err == nil {
		t.Fatal("Append() succeeded with an unwritable snapshot path")
	}
	if idx.Size() != 1 {
		t.Errorf("Size() = %d after failed append, want 1", idx.Size())
	}
}

func TestReadSnapshotRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	if err := os.WriteFile(path, []byte("definitely not gob"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := LoadOrFail(path); err == nil {
		t.Fatal("LoadOrFail() accepted a corrupt snapshot")
	}
}
