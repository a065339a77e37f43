package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta-tgbot-go/internal/models"
)

func strPtr(s string) *string { return &s }

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "menta.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ts := time.Date(2024, 6, 2, 18, 30, 15, 123456789, time.UTC)
	want := models.Interaction{
		UserID:         42,
		Timestamp:      ts,
		Type:           models.InputPhoto,
		Sentiment:      models.SentimentPositive,
		Foods:          strPtr("arroz, pollo"),
		Evaluation:     strPtr("saludable"),
		Recommendation: strPtr("Sumá verduras"),
	}
	earlier := models.Interaction{
		UserID:         42,
		Timestamp:      ts.Add(-time.Hour),
		Type:           models.InputText,
		Text:           "me siento ansiosa",
		Sentiment:      models.SentimentNegative,
		Recommendation: strPtr("Respirá hondo"),
	}
	other := models.Interaction{UserID: 7, Timestamp: ts, Type: models.InputText, Text: "hola", Sentiment: models.SentimentPositive}

	for _, in := range []*models.Interaction{&want, &earlier, &other} {
		if err := store.SaveInteraction(ctx, in); err != nil {
			t.Fatalf("save: %v", err)
		}
		if in.ID == 0 {
			t.Fatalf("id not assigned")
		}
	}

	got, err := store.FetchUserInteractions(ctx, 42)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "me siento ansiosa" || got[0].Foods != nil {
		t.Fatalf("rows not ordered by timestamp: %+v", got[0])
	}

	photo := got[1]
	if photo.ID != want.ID || photo.UserID != 42 || photo.Type != models.InputPhoto || photo.Text != "" {
		t.Fatalf("identity fields differ: %+v", photo)
	}
	if !photo.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", photo.Timestamp, ts)
	}
	if photo.Sentiment != models.SentimentPositive || *photo.Foods != "arroz, pollo" ||
		*photo.Evaluation != "saludable" || *photo.Recommendation != "Sumá verduras" {
		t.Fatalf("payload differs: %+v", photo)
	}

	stats, err := store.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.UniqueUsers != 2 || stats.TotalInteractions != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSQLiteStore_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menta.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.FetchUserInteractions(context.Background(), 1); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}

	var nilStore *SQLiteStore
	if _, err := nilStore.GlobalStats(context.Background()); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("nil store should report ErrNoDatabase, got %v", err)
	}
}

func TestParseTimestamp_LegacyRows(t *testing.T) {
	ts, err := parseTimestamp("2024-10-01T09:15:30.250000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.Hour() != 9 || ts.Nanosecond() != 250000000 {
		t.Fatalf("parsed %v", ts)
	}
}
