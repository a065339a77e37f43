package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDataset_OrderAndContents(t *testing.T) {
	ds, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}

	if ds.Recommendations[0].Name != "ansiedad" {
		t.Fatalf("first recommendation key = %q, want ansiedad", ds.Recommendations[0].Name)
	}
	if ds.Recommendations[3].Name != "motivación" {
		t.Fatalf("fourth recommendation key = %q, want motivación", ds.Recommendations[3].Name)
	}
	if len(ds.Responses("aburrimiento")) == 0 {
		t.Fatalf("aburrimiento should have responses")
	}
	if ds.Responses("orgullo") != nil {
		t.Fatalf("orgullo has no recommendation list")
	}
	if !ds.IsNegativeEmotion("tristeza") || ds.IsNegativeEmotion("calma") || ds.IsNegativeEmotion("motivación") {
		t.Fatalf("emotion group lookup is wrong")
	}
	if ds.Greetings.MaxWords != 5 || ds.Farewells.MaxWords != 6 {
		t.Fatalf("unexpected word limits: %d/%d", ds.Greetings.MaxWords, ds.Farewells.MaxWords)
	}
	for _, r := range ds.Recipes {
		if len(r.Keywords) == 0 || len(r.Responses) == 0 {
			t.Fatalf("recipe category %q incomplete", r.Name)
		}
	}
}

func TestLoad_MissingFileUsesEmbedded(t *testing.T) {
	ds, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Recommendations) == 0 {
		t.Fatalf("expected embedded dataset")
	}
}

func TestWriteDefaultThenLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data", "dataset.json")
	if err := WriteDefault(p); err != nil {
		t.Fatalf("write default: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("dataset not written: %v", err)
	}
	if _, err := Load(p); err != nil {
		t.Fatalf("load written dataset: %v", err)
	}
}

func TestParse_RejectsEmptyDataset(t *testing.T) {
	if _, err := Parse([]byte(`{"recomendaciones": []}`)); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParse_MissingWordLimitsUseDefaults(t *testing.T) {
	doc := `{
		"recomendaciones": [{"name": "ansiedad", "responses": ["respirá"]}],
		"respuestas_generales": ["te escucho"],
		"saludos": {"patrones": ["hola"], "respuestas": ["¡Hola!"]},
		"despedidas": {"patrones": ["chau"], "respuestas": ["¡Chau!"], "max_palabras": 0}
	}`
	ds, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ds.Greetings.MaxWords != DefaultGreetingMaxWords || ds.Farewells.MaxWords != DefaultFarewellMaxWords {
		t.Fatalf("word limits = %d/%d, want %d/%d",
			ds.Greetings.MaxWords, ds.Farewells.MaxWords, DefaultGreetingMaxWords, DefaultFarewellMaxWords)
	}
}
