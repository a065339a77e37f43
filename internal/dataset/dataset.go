// Package dataset holds the hand-authored emotion keywords and canned responses.
package dataset

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed dataset.json
var defaultJSON []byte

// Word limits for short greeting and farewell messages when the file leaves them unset
const (
	DefaultGreetingMaxWords = 5
	DefaultFarewellMaxWords = 6
)

// Category is an ordered entry mapping a name to detection keywords and/or responses
type Category struct {
	Name      string   `json:"name"`
	Keywords  []string `json:"keywords,omitempty"`
	Responses []string `json:"responses,omitempty"`
}

// Phrases pairs detection patterns with replies (greetings, farewells)
type Phrases struct {
	Patterns  []string `json:"patrones"`
	Responses []string `json:"respuestas"`
	MaxWords  int      `json:"max_palabras"`
}

// Intent routes a goal-oriented request to a recommendation category
type Intent struct {
	Name     string   `json:"name"`
	Category string   `json:"categoria"`
	Title    string   `json:"titulo"`
	Keywords []string `json:"keywords"`
}

// Dataset is immutable once loaded. Slices preserve first-match-wins order.
type Dataset struct {
	Recommendations    []Category          `json:"recomendaciones"`
	GeneralResponses   []string            `json:"respuestas_generales"`
	Greetings          Phrases             `json:"saludos"`
	Farewells          Phrases             `json:"despedidas"`
	Recipes            []Category          `json:"recetas"`
	NegativeEmotions   []Category          `json:"emociones_negativas"`
	PositiveEmotions   []Category          `json:"emociones_positivas"`
	Intents            []Intent            `json:"intenciones"`
	SentimentFallbacks map[string][]string `json:"fallback_por_sentimiento"`
}

// Default returns the embedded dataset
func Default() (*Dataset, error) {
	return Parse(defaultJSON)
}

// Load reads the dataset from path, falling back to the embedded copy when the file is absent
func Load(path string) (*Dataset, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a dataset document
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	ds.applyDefaults()
	return &ds, nil
}

// WriteDefault seeds path with the embedded dataset unless a file already exists
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dataset dir: %w", err)
	}
	return os.WriteFile(path, defaultJSON, 0644)
}

func (d *Dataset) validate() error {
	if len(d.Recommendations) == 0 {
		return fmt.Errorf("dataset has no recommendations")
	}
	if len(d.GeneralResponses) == 0 {
		return fmt.Errorf("dataset has no general responses")
	}
	if len(d.Greetings.Responses) == 0 || len(d.Farewells.Responses) == 0 {
		return fmt.Errorf("dataset needs greeting and farewell responses")
	}
	return nil
}

func (d *Dataset) applyDefaults() {
	if d.Greetings.MaxWords <= 0 {
		d.Greetings.MaxWords = DefaultGreetingMaxWords
	}
	if d.Farewells.MaxWords <= 0 {
		d.Farewells.MaxWords = DefaultFarewellMaxWords
	}
}

// Responses returns the recommendation list for a category, or nil
func (d *Dataset) Responses(name string) []string {
	for _, c := range d.Recommendations {
		if c.Name == name {
			return c.Responses
		}
	}
	return nil
}

// IsNegativeEmotion reports whether name belongs to the negative emotion group
func (d *Dataset) IsNegativeEmotion(name string) bool {
	for _, c := range d.NegativeEmotions {
		if c.Name == name {
			return true
		}
	}
	return false
}
