package ai

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/menta-tgbot-go/internal/models"
)

// MealPrompt asks the vision model for a structured verdict in Rioplatense Spanish
const MealPrompt = `Sos un nutricionista argentino. Analizá esta comida y respondé en JSON:

{
  "alimentos": ["alimento1", "alimento2"],
  "evaluacion": "saludable",
  "calorias_estimadas": "400-500 kcal",
  "aspectos_positivos": ["aspecto1"],
  "aspectos_mejorar": ["aspecto1"],
  "recomendacion": "Consejo breve y amigable"
}

evaluacion puede ser: "saludable", "moderada", o "poco_saludable"
Usa lenguaje argentino: vos, te, podés`

const (
	fallbackFood       = "Comida detectada"
	fallbackEvaluation = "detectada"
	maxFallbackAdvice  = 300
)

type rawMeal struct {
	Foods          []string        `json:"alimentos"`
	Evaluation     string          `json:"evaluacion"`
	Calories       json.RawMessage `json:"calorias_estimadas"`
	Positives      []string        `json:"aspectos_positivos"`
	Improvements   []string        `json:"aspectos_mejorar"`
	Recommendation string          `json:"recomendacion"`
}

// ParseMealAnalysis extracts the JSON object between the first '{' and the last '}'.
// Unparseable replies become a generic analysis carrying the reply text as advice.
func ParseMealAnalysis(reply string) *models.MealAnalysis {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start != -1 && end > start {
		var raw rawMeal
		if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err == nil {
			return &models.MealAnalysis{
				Foods:             raw.Foods,
				Evaluation:        raw.Evaluation,
				EstimatedCalories: flexibleString(raw.Calories),
				Positives:         raw.Positives,
				Improvements:      raw.Improvements,
				Recommendation:    raw.Recommendation,
			}
		}
	}

	advice := strings.TrimSpace(reply)
	if utf8.RuneCountInString(advice) > maxFallbackAdvice {
		advice = string([]rune(advice)[:maxFallbackAdvice])
	}
	return &models.MealAnalysis{
		Foods:          []string{fallbackFood},
		Evaluation:     fallbackEvaluation,
		Recommendation: advice,
	}
}

// flexibleString accepts "450 kcal" as well as a bare number
func flexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
