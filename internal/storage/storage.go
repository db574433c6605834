package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"zupgo/internal/models"
)

// DefaultLimit is how many batch summaries are kept on disk.
const DefaultLimit = 100

// Storage keeps a bounded, persisted history of finished batches.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	limit    int
	history  models.History
}

func New(dataDir string, limit int) *Storage {
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		slog.Warn("Could not create data dir", "dir", dataDir, "error", err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	store := &Storage{filePath: filepath.Join(dataDir, "batches.json"), limit: limit}
	history, err := store.load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Could not load batch history, starting fresh", "error", err)
		}
		history = models.History{}
	}
	store.history = history
	return store
}

func (s *Storage) load() (models.History, error) {
	file, err := os.Open(s.filePath)
	if err != nil {
		return models.History{}, err
	}
	defer file.Close()

	var data models.History
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return models.History{}, err
	}
	return data, nil
}

// save must be called with s.mu held.
func (s *Storage) save() error {
	tmp := s.filePath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(file).Encode(s.history); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// Record appends a finished batch, dropping the oldest entries past the limit.
func (s *Storage) Record(summary models.BatchSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Batches = append(s.history.Batches, summary)
	if over := len(s.history.Batches) - s.limit; over > 0 {
		s.history.Batches = append([]models.BatchSummary(nil), s.history.Batches[over:]...)
	}
	if err := s.save(); err != nil {
		slog.Error("Failed to save batch history", "error", err)
		return err
	}
	return nil
}

// RecordResult is a batch.CompletionHook.
func (s *Storage) RecordResult(_ context.Context, res *models.BatchResult) {
	s.Record(models.NewBatchSummary(res))
}

// List returns summaries newest first.
func (s *Storage) List() []models.BatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BatchSummary, len(s.history.Batches))
	for i, b := range s.history.Batches {
		out[len(out)-1-i] = b
	}
	return out
}

// LastFor returns the most recent summary for a collection.
func (s *Storage) LastFor(collection string) (models.BatchSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.history.Batches) - 1; i >= 0; i-- {
		if s.history.Batches[i].Collection == collection {
			return s.history.Batches[i], true
		}
	}
	return models.BatchSummary{}, false
}
