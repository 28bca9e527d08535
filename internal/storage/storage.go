package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/onrbuild/onrbuild/internal/models"
)

// ManifestStore accumulates card records in arrival order and persists them
// as a single JSON array.
type ManifestStore struct {
	path      string
	flushEach bool
	records   []models.CardRecord
	mu        sync.RWMutex
}

// Option configures a ManifestStore.
type Option func(*ManifestStore)

// WithFlushEach rewrites the manifest after every Add instead of only at
// the end of the run.
func WithFlushEach(enabled bool) Option {
	return func(s *ManifestStore) {
		s.flushEach = enabled
	}
}

func New(path string, opts ...Option) *ManifestStore {
	s := &ManifestStore{
		path:    path,
		records: make([]models.CardRecord, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the manifest destination.
func (s *ManifestStore) Path() string {
	return s.path
}

// Add appends a record. With flush-each enabled the manifest is rewritten
// immediately and a write failure is returned.
func (s *ManifestStore) Add(record models.CardRecord) error {
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()

	if s.flushEach {
		return s.Flush()
	}
	return nil
}

// Records returns a copy of the accumulated records.
func (s *ManifestStore) Records() []models.CardRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.CardRecord, len(s.records))
	copy(result, s.records)
	return result
}

func (s *ManifestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Flush writes every record as indented JSON, replacing any previous file.
// Nothing is written while the store is empty.
func (s *ManifestStore) Flush() error {
	records := s.Records()
	if len(records) == 0 {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest file: %w", err)
	}
	tmpName := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		slog.Warn("Could not set manifest permissions", "path", tmpName, "error", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	slog.Debug("Wrote manifest", "path", s.path, "records", len(records))
	return nil
}
