package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/menta-tgbot-go/internal/models"
)

// LogStore is the capped JSON array of recent interactions
type LogStore struct {
	path       string
	maxEntries int
	mu         sync.Mutex
}

func NewLogStore(path string, maxEntries int) *LogStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &LogStore{path: path, maxEntries: maxEntries}
}

// Append adds an entry and keeps only the newest maxEntries
func (l *LogStore) Append(entry models.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	if len(entries) > l.maxEntries {
		entries = entries[len(entries)-l.maxEntries:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(l.path, data)
}

// Entries returns the stored log, oldest first
func (l *LogStore) Entries() ([]models.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *LogStore) read() ([]models.LogEntry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []models.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode log file: %w", err)
	}
	return entries, nil
}
