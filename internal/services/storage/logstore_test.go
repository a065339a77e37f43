package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/menta-tgbot-go/internal/models"
)

func TestLogStore_KeepsNewestEntries(t *testing.T) {
	logs := NewLogStore(filepath.Join(t.TempDir(), "user_logs.json"), 3)

	for i := 0; i < 5; i++ {
		if err := logs.Append(models.LogEntry{UserID: "1", Message: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := logs.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Message != "m2" || entries[2].Message != "m4" {
		t.Fatalf("unexpected window: %+v", entries)
	}
}

func TestLogStore_MissingFileIsEmpty(t *testing.T) {
	logs := NewLogStore(filepath.Join(t.TempDir(), "nope.json"), 0)
	entries, err := logs.Entries()
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries = %v, err = %v", entries, err)
	}
	if logs.maxEntries != 1000 {
		t.Fatalf("default cap = %d", logs.maxEntries)
	}
}
