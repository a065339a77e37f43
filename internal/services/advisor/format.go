package advisor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/menta-tgbot-go/internal/i18n"
	"github.com/menta-tgbot-go/internal/models"
)

var evaluationEmoji = map[string]string{
	"saludable":      "✅",
	"moderada":       "⚖️",
	"poco_saludable": "⚠️",
}

// FormatMealAnalysis renders an analysis as Markdown for pkg/markdown to convert
func FormatMealAnalysis(loc *i18n.Localizer, lang string, a *models.MealAnalysis) string {
	if a == nil {
		return ""
	}

	sections := []string{loc.Get(lang, i18n.MsgMealTitle, nil)}

	if len(a.Foods) > 0 {
		sections = append(sections, loc.Get(lang, i18n.MsgMealFoods, map[string]interface{}{
			"Foods": strings.Join(a.Foods, ", "),
		}))
	}

	if a.Evaluation != "" {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(a.Evaluation)), " ", "_")
		emoji, ok := evaluationEmoji[key]
		if !ok {
			emoji = "🔍"
		}
		sections = append(sections, loc.Get(lang, i18n.MsgMealEvaluation, map[string]interface{}{
			"Emoji":      emoji,
			"Evaluation": capitalize(strings.ReplaceAll(a.Evaluation, "_", " ")),
		}))
	}

	if a.EstimatedCalories != "" {
		sections = append(sections, loc.Get(lang, i18n.MsgMealCalories, map[string]interface{}{
			"Calories": a.EstimatedCalories,
		}))
	}

	if len(a.Positives) > 0 {
		sections = append(sections, loc.Get(lang, i18n.MsgMealPositives, nil), bulletList(a.Positives))
	}
	if len(a.Improvements) > 0 {
		sections = append(sections, loc.Get(lang, i18n.MsgMealImprovements, nil), bulletList(a.Improvements))
	}

	if a.Recommendation != "" {
		sections = append(sections, loc.Get(lang, i18n.MsgMealAdvice, map[string]interface{}{
			"Advice": a.Recommendation,
		}))
	}

	return strings.Join(sections, "\n\n")
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
