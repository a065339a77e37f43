package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoDatabase is returned when the SQLite file is missing or was never opened
	ErrNoDatabase = errors.New("interaction database not available")
	// ErrNotFound is returned when a user has no stored memory
	ErrNotFound = errors.New("not found")
)

const (
	maxLogChars  = 100
	maxTextChars = 1000
)

// MemoryStore keeps the per-user aggregate
type MemoryStore interface {
	Get(ctx context.Context, userID int64) (*models.UserMemory, error)
	Update(ctx context.Context, userID int64, at time.Time, sentiment models.Sentiment, recommendation string) (*models.UserMemory, error)
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Recorder receives storage timings
type Recorder interface {
	RecordStorageOperation(operation, status string, duration time.Duration)
}

// Record is one handled message ready to persist
type Record struct {
	UserID         int64
	Type           models.InputType
	Text           string
	LogMessage     string
	Sentiment      models.Sentiment
	Foods          *string
	Evaluation     *string
	Recommendation string
	LogResponse    string
}

// Manager fans a record out to memory, the JSON log and SQLite
type Manager struct {
	memory  MemoryStore
	logs    *LogStore
	db      *SQLiteStore
	metrics Recorder
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewManager opens every configured backend
func NewManager(cfg *config.StorageConfig, metrics Recorder, logger logrus.FieldLogger) (*Manager, error) {
	var memory MemoryStore

	switch cfg.Memory.Type {
	case "redis":
		redisStore, err := NewRedisMemoryStore(&cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		memory = redisStore
	case "memory":
		memory = NewCacheMemoryStore()
	case "json", "":
		memory = NewJSONMemoryStore(cfg.MemoryFile)
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Memory.Type)
	}

	db, err := OpenSQLite(cfg.DBFile)
	if err != nil {
		memory.Close()
		return nil, err
	}

	return NewManagerWith(memory, NewLogStore(cfg.LogsFile, cfg.Logs.MaxEntries), db, metrics, logger), nil
}

// NewManagerWith assembles a manager from already opened stores. db may be nil.
func NewManagerWith(memory MemoryStore, logs *LogStore, db *SQLiteStore, metrics Recorder, logger logrus.FieldLogger) *Manager {
	return &Manager{
		memory:  memory,
		logs:    logs,
		db:      db,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordInteraction persists one outcome to all three stores.
// Every store is attempted; failures are joined into the returned error.
func (m *Manager) RecordInteraction(ctx context.Context, rec Record) error {
	at := m.now()
	sentiment := rec.Sentiment
	if sentiment == "" {
		sentiment = models.SentimentNeutral
	}

	var errs []error

	if err := m.observe("memory_update", func() error {
		_, err := m.memory.Update(ctx, rec.UserID, at, sentiment, rec.Recommendation)
		return err
	}); err != nil {
		errs = append(errs, fmt.Errorf("update memory: %w", err))
	}

	if m.logs != nil {
		logResponse := rec.LogResponse
		if logResponse == "" {
			logResponse = rec.Recommendation
		}
		entry := models.LogEntry{
			UserID:    strconv.FormatInt(rec.UserID, 10),
			Date:      at.Format("2006-01-02 15:04:05"),
			Message:   truncate(rec.LogMessage, maxLogChars),
			Sentiment: sentiment,
			Response:  truncate(logResponse, maxLogChars),
		}
		if err := m.observe("log_append", func() error { return m.logs.Append(entry) }); err != nil {
			errs = append(errs, fmt.Errorf("append log: %w", err))
		}
	}

	if m.db != nil {
		recommendation := rec.Recommendation
		interaction := &models.Interaction{
			UserID:         rec.UserID,
			Timestamp:      at,
			Type:           rec.Type,
			Text:           truncate(rec.Text, maxTextChars),
			Sentiment:      sentiment,
			Foods:          rec.Foods,
			Evaluation:     rec.Evaluation,
			Recommendation: &recommendation,
		}
		if err := m.observe("sqlite_insert", func() error { return m.db.SaveInteraction(ctx, interaction) }); err != nil {
			errs = append(errs, fmt.Errorf("save interaction: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Memory returns a user's aggregate or ErrNotFound
func (m *Manager) Memory(ctx context.Context, userID int64) (*models.UserMemory, error) {
	return m.memory.Get(ctx, userID)
}

// ClearMemory forgets a user's aggregate
func (m *Manager) ClearMemory(ctx context.Context, userID int64) error {
	return m.observe("memory_clear", func() error { return m.memory.Clear(ctx, userID) })
}

// UserInteractions returns the user's rows ordered by time
func (m *Manager) UserInteractions(ctx context.Context, userID int64) ([]models.Interaction, error) {
	if m.db == nil {
		return nil, ErrNoDatabase
	}
	return m.db.FetchUserInteractions(ctx, userID)
}

// GlobalStats counts unique users and interactions in SQLite
func (m *Manager) GlobalStats(ctx context.Context) (models.GlobalStats, error) {
	if m.db == nil {
		return models.GlobalStats{}, ErrNoDatabase
	}
	return m.db.GlobalStats(ctx)
}

// Close releases all backends
func (m *Manager) Close() error {
	var errs []error
	if m.memory != nil {
		errs = append(errs, m.memory.Close())
	}
	if m.db != nil {
		errs = append(errs, m.db.Close())
	}
	return errors.Join(errs...)
}

func (m *Manager) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if m.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordStorageOperation(operation, status, time.Since(start))
	}
	if err != nil && m.logger != nil {
		m.logger.WithError(err).WithField("operation", operation).Warn("Storage operation failed")
	}
	return err
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
