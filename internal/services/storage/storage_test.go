package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/pkg/logger"
)

type recordedOp struct {
	operation, status string
}

type fakeRecorder struct {
	ops []recordedOp
}

func (f *fakeRecorder) RecordStorageOperation(operation, status string, _ time.Duration) {
	f.ops = append(f.ops, recordedOp{operation, status})
}

func newTestManager(t *testing.T) (*Manager, *fakeRecorder, *config.StorageConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.StorageConfig{
		MemoryFile: filepath.Join(dir, "user_memory.json"),
		LogsFile:   filepath.Join(dir, "user_logs.json"),
		DBFile:     filepath.Join(dir, "menta.db"),
		Logs:       config.LogsConfig{MaxEntries: 1000},
		Memory:     config.MemoryConfig{Type: "json"},
	}
	rec := &fakeRecorder{}
	m, err := NewManager(cfg, rec, logger.Discard())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, rec, cfg
}

func TestManager_RecordInteractionWritesAllStores(t *testing.T) {
	ctx := context.Background()
	m, rec, cfg := newTestManager(t)
	m.now = func() time.Time { return time.Date(2024, 7, 9, 8, 0, 0, 0, time.UTC) }

	long := strings.Repeat("á", 150)
	err := m.RecordInteraction(ctx, Record{
		UserID:         11,
		Type:           models.InputText,
		Text:           long,
		LogMessage:     "[TEXTO] " + long,
		Sentiment:      models.SentimentNegative,
		Recommendation: "Tomate un respiro",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	mem, err := m.Memory(ctx, 11)
	if err != nil || mem.Stats.Negative != 1 {
		t.Fatalf("memory = %+v, err = %v", mem, err)
	}

	entries, err := NewLogStore(cfg.LogsFile, 10).Entries()
	if err != nil || len(entries) != 1 {
		t.Fatalf("log entries = %v, err = %v", entries, err)
	}
	if got := []rune(entries[0].Message); len(got) != 100 || !strings.HasPrefix(entries[0].Message, "[TEXTO] ") {
		t.Fatalf("log message not truncated with prefix: %q", entries[0].Message)
	}
	if entries[0].Date != "2024-07-09 08:00:00" || entries[0].UserID != "11" {
		t.Fatalf("unexpected log entry: %+v", entries[0])
	}

	rows, err := m.UserInteractions(ctx, 11)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}
	if rows[0].Text != long || *rows[0].Recommendation != "Tomate un respiro" {
		t.Fatalf("row = %+v", rows[0])
	}

	if len(rec.ops) != 3 {
		t.Fatalf("recorded %d operations, want 3", len(rec.ops))
	}
	for _, op := range rec.ops {
		if op.status != "success" {
			t.Fatalf("operation %s failed", op.operation)
		}
	}
}

func TestManager_ClearAndStats(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	for _, id := range []int64{1, 1, 2} {
		m.RecordInteraction(ctx, Record{UserID: id, Type: models.InputText, Text: "hola", Sentiment: models.SentimentPositive})
	}

	stats, err := m.GlobalStats(ctx)
	if err != nil || stats.UniqueUsers != 2 || stats.TotalInteractions != 3 {
		t.Fatalf("stats = %+v, err = %v", stats, err)
	}

	if err := m.ClearMemory(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := m.Memory(ctx, 1); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_WithoutDatabase(t *testing.T) {
	m := NewManagerWith(NewCacheMemoryStore(), nil, nil, nil, logger.Discard())
	if err := m.RecordInteraction(context.Background(), Record{UserID: 1}); err != nil {
		t.Fatalf("memory-only record should succeed: %v", err)
	}
	if _, err := m.UserInteractions(context.Background(), 1); err != ErrNoDatabase {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("ñandú", 3); got != "ñan" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("ok", 10); got != "ok" {
		t.Fatalf("truncate = %q", got)
	}
}
