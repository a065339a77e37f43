package emotion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/menta-tgbot-go/internal/dataset"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/pkg/logger"
)

type stubModel struct {
	label models.Sentiment
	err   error
	calls int
	last  string
}

func (m *stubModel) Sentiment(_ context.Context, text string) (models.Sentiment, error) {
	m.calls++
	m.last = text
	return m.label, m.err
}

type mapCache map[string]models.Sentiment

func (c mapCache) Get(text string) (models.Sentiment, bool) { s, ok := c[text]; return s, ok }
func (c mapCache) Set(text string, s models.Sentiment)      { c[text] = s }

func newClassifier(t *testing.T, model Model, cache Cache) *Classifier {
	t.Helper()
	ds, err := dataset.Default()
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return NewClassifier(ds, model, cache, logger.Discard())
}

func TestDetectEmotion(t *testing.T) {
	c := newClassifier(t, nil, nil)

	tests := []struct {
		text    string
		emotion string
		ok      bool
	}{
		{"Hoy estoy muy ANSIOSA por el examen", "ansiedad", true},
		{"tengo mucho trabajo", "estrés", true},
		{"me siento mal por comer tanto", "culpa", true},
		{"estoy embolado", "aburrimiento", true},
		{"me siento tranquila", "calma", true},
		{"hoy me quiero mucho", "amor_propio", true},
		{"triste pero feliz", "tristeza", true},
		{"el cielo es azul", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := c.DetectEmotion(tt.text)
			if got != tt.emotion || ok != tt.ok {
				t.Errorf("DetectEmotion(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.emotion, tt.ok)
			}
		})
	}
}

func TestDetectEmotion_EveryKeywordMapsToItsEmotion(t *testing.T) {
	c := newClassifier(t, nil, nil)
	for _, group := range [][]dataset.Category{c.ds.NegativeEmotions, c.ds.PositiveEmotions} {
		for _, emotion := range group {
			for _, kw := range emotion.Keywords {
				got, ok := c.DetectEmotion("bueno, " + kw + ".")
				if !ok {
					t.Fatalf("keyword %q not detected", kw)
				}
				// an earlier emotion may legitimately claim a shared keyword
				if got != emotion.Name && !earlierClaims(c, got, kw) {
					t.Errorf("keyword %q -> %q, want %q", kw, got, emotion.Name)
				}
			}
		}
	}
}

func earlierClaims(c *Classifier, emotion, kw string) bool {
	for _, group := range [][]dataset.Category{c.ds.NegativeEmotions, c.ds.PositiveEmotions} {
		for _, e := range group {
			if e.Name != emotion {
				continue
			}
			for _, k := range e.Keywords {
				if strings.Contains(kw, k) {
					return true
				}
			}
		}
	}
	return false
}

func TestClassify_KeywordWinsOverModel(t *testing.T) {
	model := &stubModel{label: models.SentimentPositive}
	c := newClassifier(t, model, nil)

	res := c.Classify(context.Background(), "estoy muy estresada")
	if res.Emotion != "estrés" || res.Sentiment != models.SentimentNegative || res.Source != SourceKeyword {
		t.Fatalf("unexpected result %+v", res)
	}
	if model.calls != 0 {
		t.Fatalf("model should not run on a keyword hit")
	}
}

func TestClassify_ModelFallbackAndCache(t *testing.T) {
	model := &stubModel{label: models.SentimentNegative}
	cache := mapCache{}
	c := newClassifier(t, model, cache)

	long := strings.Repeat("á", 600)
	for i := 0; i < 2; i++ {
		res := c.Classify(context.Background(), long)
		if res.Sentiment != models.SentimentNegative || res.Source != SourceModel {
			t.Fatalf("unexpected result %+v", res)
		}
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1 (second served from cache)", model.calls)
	}
	if n := utf8.RuneCountInString(model.last); n != MaxModelInput {
		t.Fatalf("model input length = %d, want %d", n, MaxModelInput)
	}
}

func TestClassify_ModelErrorAndNoModel(t *testing.T) {
	c := newClassifier(t, &stubModel{err: errors.New("timeout")}, nil)
	if res := c.Classify(context.Background(), "el cielo es azul"); res.Sentiment != models.SentimentNeutral || res.Source != SourceDefault {
		t.Fatalf("model error should yield neutral, got %+v", res)
	}

	c = newClassifier(t, nil, nil)
	if res := c.Classify(context.Background(), "el cielo es azul"); res.Sentiment != models.SentimentNeutral {
		t.Fatalf("no model should yield neutral, got %+v", res)
	}
	if res := c.Classify(context.Background(), "   "); res.Sentiment != models.SentimentNeutral {
		t.Fatalf("blank text should yield neutral, got %+v", res)
	}
}

func TestIsGreeting(t *testing.T) {
	c := newClassifier(t, nil, nil)

	long := "ayer fui al mercado con mi hermana y cuando llegamos nos dijo hola un señor que vendía frutas muy ricas"
	if n := len(strings.Fields(long)); n != 20 {
		t.Fatalf("fixture has %d words, want 20", n)
	}

	tests := []struct {
		text string
		want bool
	}{
		{"hola", true},
		{"  Hola!  ", true},
		{"buenas tardes menta", true},
		{"hola menta, hoy quiero contarte algo largo sobre mi semana y mi comida", true},
		{long, false},
		{"quiero comer algo rico", false},
	}
	for _, tt := range tests {
		if got := c.IsGreeting(tt.text); got != tt.want {
			t.Errorf("IsGreeting(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsFarewell(t *testing.T) {
	c := newClassifier(t, nil, nil)

	tests := []struct {
		text string
		want bool
	}{
		{"chau", true},
		{"bueno me voy a dormir ya", true},
		{"hasta luego, gracias por todo lo que me ayudaste hoy", true},
		{"mi amiga siempre dice chau cuando se va de casa temprano", false},
	}
	for _, tt := range tests {
		if got := c.IsFarewell(tt.text); got != tt.want {
			t.Errorf("IsFarewell(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSentimentOf(t *testing.T) {
	c := newClassifier(t, nil, nil)
	if c.SentimentOf("aburrimiento") != models.SentimentNegative {
		t.Fatalf("aburrimiento should be negative")
	}
	if c.SentimentOf("gratitud") != models.SentimentPositive {
		t.Fatalf("gratitud should be positive")
	}
}

func TestIsGreeting_DatasetWithoutWordLimit(t *testing.T) {
	ds, err := dataset.Parse([]byte(`{
		"recomendaciones": [{"name": "ansiedad", "responses": ["respirá"]}],
		"respuestas_generales": ["te escucho"],
		"saludos": {"patrones": ["hola"], "respuestas": ["¡Hola!"]},
		"despedidas": {"patrones": ["chau"], "respuestas": ["¡Chau!"]}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := NewClassifier(ds, nil, nil, logger.Discard())

	if !c.IsGreeting("bueno hola menta") {
		t.Errorf("short message containing a greeting should match")
	}
	if !c.IsFarewell("bueno chau") {
		t.Errorf("short message containing a farewell should match")
	}
}
