package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/menta-tgbot-go/internal/models"
)

// JSONMemoryStore keeps every user's memory in one JSON object keyed by user id.
// Writes go through a temp file and rename under a mutex.
type JSONMemoryStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONMemoryStore(path string) *JSONMemoryStore {
	return &JSONMemoryStore{path: path}
}

func (s *JSONMemoryStore) Get(ctx context.Context, userID int64) (*models.UserMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	mem, ok := all[strconv.FormatInt(userID, 10)]
	if !ok {
		return nil, ErrNotFound
	}
	return mem, nil
}

func (s *JSONMemoryStore) Update(ctx context.Context, userID int64, at time.Time, sentiment models.Sentiment, recommendation string) (*models.UserMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}

	key := strconv.FormatInt(userID, 10)
	mem, ok := all[key]
	if !ok {
		mem = &models.UserMemory{}
		all[key] = mem
	}
	mem.Apply(at, sentiment, recommendation)

	if err := s.save(all); err != nil {
		return nil, err
	}
	return mem, nil
}

func (s *JSONMemoryStore) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(userID, 10)
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return s.save(all)
}

func (s *JSONMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *JSONMemoryStore) Close() error { return nil }

func (s *JSONMemoryStore) load() (map[string]*models.UserMemory, error) {
	all := make(map[string]*models.UserMemory)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		// Unreadable memory starts over; the old file is kept next to it
		if err := os.Rename(s.path, s.path+".corrupt"); err != nil {
			return nil, fmt.Errorf("move aside corrupt memory file: %w", err)
		}
		return make(map[string]*models.UserMemory), nil
	}
	return all, nil
}

func (s *JSONMemoryStore) save(all map[string]*models.UserMemory) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic replaces path in one rename so readers never see a partial file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
