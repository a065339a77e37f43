// Package dashboard renders a per-user HTML report with mood, meal and recommendation charts.
package dashboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// EmptyMessage is written instead of charts when a user has no history
const EmptyMessage = "No hay datos suficientes para generar el dashboard."

const maxLabelRunes = 40

// Source provides a user's interaction history in timestamp order
type Source interface {
	UserInteractions(ctx context.Context, userID int64) ([]models.Interaction, error)
}

// Recorder counts generated dashboards
type Recorder interface {
	RecordDashboard(empty bool)
}

// Report describes the files written for one dashboard
type Report struct {
	Path   string
	Charts []string
	Empty  bool
}

// Renderer writes dashboards into a directory
type Renderer struct {
	source  Source
	dir     string
	topN    int
	metrics Recorder
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewRenderer creates a renderer. metrics may be nil.
func NewRenderer(cfg *config.DashboardConfig, source Source, metrics Recorder, logger logrus.FieldLogger) *Renderer {
	topN := cfg.TopN
	if topN <= 0 {
		topN = 10
	}
	dir := cfg.Directory
	if dir == "" {
		dir = filepath.Join("data", "dashboard")
	}
	return &Renderer{
		source:  source,
		dir:     dir,
		topN:    topN,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate renders the dashboard and returns the HTML path
func (r *Renderer) Generate(ctx context.Context, userID int64) (string, error) {
	report, err := r.Render(ctx, userID)
	if err != nil {
		return "", err
	}
	return report.Path, nil
}

// Render writes <dir>/<user>_dashboard.html plus one PNG per chart.
// A missing database or empty history produces a stub page, not an error.
func (r *Renderer) Render(ctx context.Context, userID int64) (*Report, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dashboard dir: %w", err)
	}

	report := &Report{Path: filepath.Join(r.dir, fmt.Sprintf("%d_dashboard.html", userID))}

	interactions, err := r.source.UserInteractions(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNoDatabase):
		r.logger.WithField("user_id", userID).Warn("Database not found, writing empty dashboard")
	case err != nil:
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	if len(interactions) == 0 {
		report.Empty = true
		if err := r.writePage(report.Path, page{UserID: userID, Generated: r.now(), Empty: true, EmptyMessage: EmptyMessage}); err != nil {
			return nil, err
		}
		r.record(true)
		return report, nil
	}

	p := page{
		UserID:    userID,
		Generated: r.now(),
		Total:     len(interactions),
	}
	for _, in := range interactions {
		switch in.Sentiment {
		case models.SentimentPositive:
			p.Positive++
		case models.SentimentNegative:
			p.Negative++
		default:
			p.Neutral++
		}
	}

	charts := []struct {
		name  string
		title string
		build func([]models.Interaction) (*plot.Plot, vg.Length, error)
	}{
		{"mood", "Evolución emocional", moodChart},
		{"food", "Evaluación de comidas", evaluationChart},
		{"recs", "Recomendaciones más frecuentes", r.recommendationChart},
	}

	for _, c := range charts {
		section := chartSection{Title: c.title}

		pl, height, err := c.build(interactions)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s chart: %w", c.name, err)
		}
		if pl != nil {
			png, err := renderPNG(pl, height)
			if err != nil {
				return nil, fmt.Errorf("failed to render %s chart: %w", c.name, err)
			}
			file := filepath.Join(r.dir, fmt.Sprintf("%d_%s.png", userID, c.name))
			if err := os.WriteFile(file, png, 0644); err != nil {
				return nil, fmt.Errorf("failed to write %s chart: %w", c.name, err)
			}
			report.Charts = append(report.Charts, file)
			section.Image = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		}
		p.Charts = append(p.Charts, section)
	}

	if err := r.writePage(report.Path, p); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"interactions": len(interactions),
		"charts":       len(report.Charts),
	}).Info("Dashboard generated")
	r.record(false)
	return report, nil
}

func (r *Renderer) record(empty bool) {
	if r.metrics != nil {
		r.metrics.RecordDashboard(empty)
	}
}

func (r *Renderer) writePage(path string, p page) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return fmt.Errorf("failed to execute dashboard template: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write dashboard: %w", err)
	}
	return nil
}

// moodChart plots -1/0/+1 per interaction over time
func moodChart(interactions []models.Interaction) (*plot.Plot, vg.Length, error) {
	pts := make(plotter.XYs, len(interactions))
	for i, in := range interactions {
		pts[i].X = float64(in.Timestamp.Unix())
		pts[i].Y = in.Sentiment.Value()
	}

	p := plot.New()
	p.Title.Text = "Evolución emocional"
	p.X.Label.Text = "Fecha"
	p.Y.Label.Text = "Sentimiento"
	p.X.Tick.Marker = plot.TimeTicks{Format: "02/01 15:04"}
	p.Y.Min, p.Y.Max = -1.2, 1.2
	p.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: -1, Label: "NEG"},
		{Value: 0, Label: "NEU"},
		{Value: 1, Label: "POS"},
	})
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, 0, err
	}
	line.Color = plotutil.Color(0)
	points.Color = plotutil.Color(0)
	p.Add(line, points)

	return p, 4 * vg.Inch, nil
}

// evaluationChart counts meal verdicts; nil when no photo was analyzed
func evaluationChart(interactions []models.Interaction) (*plot.Plot, vg.Length, error) {
	counts := make(map[string]int)
	for _, in := range interactions {
		if in.Evaluation == nil || strings.TrimSpace(*in.Evaluation) == "" {
			continue
		}
		counts[strings.ToLower(strings.TrimSpace(*in.Evaluation))]++
	}
	if len(counts) == 0 {
		return nil, 0, nil
	}

	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	values := make(plotter.Values, len(labels))
	for i, l := range labels {
		values[i] = float64(counts[l])
		labels[i] = strings.ReplaceAll(l, "_", " ")
	}

	p := plot.New()
	p.Title.Text = "Evaluación de comidas"
	p.Y.Label.Text = "Cantidad"

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, 0, err
	}
	bars.Color = plotutil.Color(1)
	p.Add(bars)
	p.NominalX(labels...)

	return p, 4 * vg.Inch, nil
}

// recommendationChart shows the most frequent recommendations as horizontal bars
func (r *Renderer) recommendationChart(interactions []models.Interaction) (*plot.Plot, vg.Length, error) {
	top := topRecommendations(interactions, r.topN)
	if len(top) == 0 {
		return nil, 0, nil
	}

	values := make(plotter.Values, len(top))
	labels := make([]string, len(top))
	// Reverse so the most frequent bar is drawn on top
	for i, rc := range top {
		j := len(top) - 1 - i
		values[j] = float64(rc.count)
		labels[j] = shorten(rc.text, maxLabelRunes)
	}

	p := plot.New()
	p.Title.Text = "Recomendaciones más frecuentes"
	p.X.Label.Text = "Veces"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, 0, err
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Length(len(top))*vg.Points(26) + 1.5*vg.Inch
	return p, height, nil
}

type recCount struct {
	text  string
	count int
}

func topRecommendations(interactions []models.Interaction, n int) []recCount {
	counts := make(map[string]int)
	for _, in := range interactions {
		if in.Recommendation == nil {
			continue
		}
		text := strings.TrimSpace(*in.Recommendation)
		if text == "" {
			continue
		}
		counts[text]++
	}

	out := make([]recCount, 0, len(counts))
	for text, c := range counts {
		out = append(out, recCount{text: text, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].text < out[j].text
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func renderPNG(p *plot.Plot, height vg.Length) ([]byte, error) {
	w, err := p.WriterTo(8*vg.Inch, height, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
