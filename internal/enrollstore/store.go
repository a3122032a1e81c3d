// Package enrollstore persists the face crop of every newly enrolled
// identity and keeps an append-only ledger mapping index ranks to the
// saved artifacts, for audit and inspection.
package enrollstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const ledgerName = "records.jsonl"

// Record maps an enrolled rank to its saved face image. Records mirror the
// similarity index insertion order 1:1 and are never updated or removed.
type Record struct {
	Rank       int       `json:"rank"`
	Path       string    `json:"path"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Store writes enrolled face crops and ledger records under a single
// directory. Safe for concurrent use.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the storage directory if absent and returns the store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating faces directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// SaveFace writes the crop to a new file and returns its path. Filenames
// combine a UTC timestamp with a random suffix so concurrent saves in the
// same second cannot collide.
func (s *Store) SaveFace(crop []byte) (string, error) {
	name := fmt.Sprintf("face_%s_%s.jpg",
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
	)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, crop, 0o640); err != nil {
		return "", fmt.Errorf("saving face crop: %w", err)
	}
	return path, nil
}

// Record appends an enrollment record to the ledger.
func (s *Store) Record(rank int, path string) error {
	rec := Record{Rank: rank, Path: path, EnrolledAt: time.Now().UTC()}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling enrollment record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, ledgerName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening enrollment ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending enrollment record: %w", err)
	}
	return nil
}

// Records reads the full ledger in enrollment order. A missing ledger means
// no enrollments yet and returns an empty slice.
func (s *Store) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, ledgerName))
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("opening enrollment ledger: %w", err)
	}
	defer f.Close()

	records := []Record{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing enrollment record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading enrollment ledger: %w", err)
	}
	return records, nil
}
