package dashboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/menta-tgbot-go/pkg/logger"
)

type fakeSource struct {
	rows []models.Interaction
	err  error
}

func (f fakeSource) UserInteractions(context.Context, int64) ([]models.Interaction, error) {
	return f.rows, f.err
}

type fakeRecorder struct{ empty, full int }

func (f *fakeRecorder) RecordDashboard(empty bool) {
	if empty {
		f.empty++
	} else {
		f.full++
	}
}

func str(s string) *string { return &s }

func newRenderer(t *testing.T, src Source, rec Recorder) *Renderer {
	t.Helper()
	return NewRenderer(&config.DashboardConfig{Directory: filepath.Join(t.TempDir(), "dash"), TopN: 2}, src, rec, logger.Discard())
}

func TestRender_EmptyHistoryWritesStub(t *testing.T) {
	tests := []struct {
		name string
		src  fakeSource
	}{
		{"no rows", fakeSource{}},
		{"no database", fakeSource{err: storage.ErrNoDatabase}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			r := newRenderer(t, tt.src, rec)

			report, err := r.Render(context.Background(), 42)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if !report.Empty || len(report.Charts) != 0 {
				t.Fatalf("report = %+v", report)
			}
			if filepath.Base(report.Path) != "42_dashboard.html" {
				t.Fatalf("path = %s", report.Path)
			}
			body, err := os.ReadFile(report.Path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !strings.Contains(string(body), EmptyMessage) {
				t.Fatalf("stub missing message:\n%s", body)
			}
			if rec.empty != 1 || rec.full != 0 {
				t.Fatalf("recorder = %+v", rec)
			}
		})
	}
}

func TestRender_SourceErrorPropagates(t *testing.T) {
	r := newRenderer(t, fakeSource{err: errors.New("locked")}, nil)
	if _, err := r.Generate(context.Background(), 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRender_WritesChartsAndPage(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []models.Interaction{
		{UserID: 7, Timestamp: base, Type: models.InputText, Sentiment: models.SentimentNegative, Recommendation: str("Respirá profundo")},
		{UserID: 7, Timestamp: base.Add(time.Hour), Type: models.InputPhoto, Sentiment: models.SentimentPositive, Evaluation: str("saludable"), Foods: str("ensalada"), Recommendation: str("Seguí así")},
		{UserID: 7, Timestamp: base.Add(2 * time.Hour), Type: models.InputText, Sentiment: models.SentimentNeutral, Recommendation: str("Respirá profundo")},
		{UserID: 7, Timestamp: base.Add(3 * time.Hour), Type: models.InputText, Sentiment: models.SentimentPositive, Recommendation: str("Tomá agua")},
	}
	rec := &fakeRecorder{}
	r := newRenderer(t, fakeSource{rows: rows}, rec)

	report, err := r.Render(context.Background(), 7)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if report.Empty || len(report.Charts) != 3 {
		t.Fatalf("report = %+v", report)
	}
	for _, name := range []string{"7_mood.png", "7_food.png", "7_recs.png"} {
		data, err := os.ReadFile(filepath.Join(filepath.Dir(report.Path), name))
		if err != nil {
			t.Fatalf("chart %s: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "\x89PNG") {
			t.Fatalf("chart %s is not a PNG", name)
		}
	}

	body, err := os.ReadFile(report.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	page := string(body)
	if strings.Count(page, `src="data:image/png;base64,`) != 3 {
		t.Fatalf("expected three embedded charts:\n%.500s", page)
	}
	if !strings.Contains(page, "Interacciones: <b>4</b>") {
		t.Fatalf("summary missing")
	}
	if rec.full != 1 {
		t.Fatalf("recorder = %+v", rec)
	}
}

func TestRender_NoMealsSkipsFoodChart(t *testing.T) {
	rows := []models.Interaction{
		{UserID: 3, Timestamp: time.Now(), Sentiment: models.SentimentPositive, Recommendation: str("Hola")},
	}
	r := newRenderer(t, fakeSource{rows: rows}, nil)

	report, err := r.Render(context.Background(), 3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(report.Charts) != 2 {
		t.Fatalf("charts = %v", report.Charts)
	}
	body, _ := os.ReadFile(report.Path)
	if !strings.Contains(string(body), "Sin datos para este gráfico.") {
		t.Fatalf("missing no-data paragraph")
	}
}

func TestTopRecommendations(t *testing.T) {
	rows := []models.Interaction{
		{Recommendation: str("b")}, {Recommendation: str("a")}, {Recommendation: str("b")},
		{Recommendation: str("c")}, {Recommendation: str(" ")}, {},
	}
	top := topRecommendations(rows, 2)
	if len(top) != 2 || top[0] != (recCount{"b", 2}) || top[1] != (recCount{"a", 1}) {
		t.Fatalf("top = %+v", top)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("abcdef", 4); got != "abc…" {
		t.Fatalf("shorten = %q", got)
	}
	if got := shorten("abc", 4); got != "abc" {
		t.Fatalf("shorten = %q", got)
	}
}
