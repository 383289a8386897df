package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultLimit bounds how many records the store keeps on disk.
const defaultLimit = 1000

// Record is one persisted detection.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Value      string    `json:"value"`
	Format     string    `json:"format"`
	Type       string    `json:"type"`
	DetectedAt time.Time `json:"detected_at"`
}

// Store keeps detections in a JSON file. The newest records are kept when
// the limit is exceeded.
type Store struct {
	filePath string
	limit    int

	mu      sync.RWMutex
	records []Record
}

// Open loads the store at path, creating its directory if needed. A missing
// file is an empty store.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	s := &Store{filePath: path, limit: limit}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.filePath
}

// Save appends r and persists the store. An empty ID is filled with a new
// uuid and a zero DetectedAt with the current time.
func (s *Store) Save(r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.DetectedAt.IsZero() {
		r.DetectedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(s.records, r)
	if len(records) > s.limit {
		records = records[len(records)-s.limit:]
	}
	if err := s.write(records); err != nil {
		return Record{}, err
	}
	s.records = records
	return r, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Record {
	s.mu.RLock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// write replaces the file atomically so a crash never leaves half a list.
func (s *Store) write(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".history-*")
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}
