// Package recommend picks canned responses from the dataset.
package recommend

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/menta-tgbot-go/internal/dataset"
	"github.com/menta-tgbot-go/internal/models"
)

// Source tells how a recommendation was chosen
type Source string

const (
	SourceTopic     Source = "topic"
	SourceSentiment Source = "sentiment_fallback"
	SourceGeneral   Source = "general"
)

// Recommendation is a chosen response and where it came from
type Recommendation struct {
	Text     string
	Category string
	Source   Source
}

// Selector draws uniformly random responses. It is safe for concurrent use.
type Selector struct {
	ds  *dataset.Dataset
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a selector; a nil rng is seeded from the clock
func NewSelector(ds *dataset.Dataset, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{ds: ds, rng: rng}
}

// Recommend returns a response for text. A recommendation key found in the text
// wins; otherwise the sentiment's fallback categories are tried in order, then
// the generic responses.
func (s *Selector) Recommend(text string, sentiment models.Sentiment) Recommendation {
	lower := strings.ToLower(text)
	for _, c := range s.ds.Recommendations {
		if len(c.Responses) > 0 && strings.Contains(lower, c.Name) {
			return Recommendation{Text: s.pick(c.Responses), Category: c.Name, Source: SourceTopic}
		}
	}

	for _, name := range s.ds.SentimentFallbacks[string(normalize(sentiment))] {
		if responses := s.ds.Responses(name); len(responses) > 0 {
			return Recommendation{Text: s.pick(responses), Category: name, Source: SourceSentiment}
		}
	}

	return Recommendation{Text: s.pick(s.ds.GeneralResponses), Source: SourceGeneral}
}

// ForEmotion returns a random response for a detected emotion
func (s *Selector) ForEmotion(emotion string) (string, bool) {
	responses := s.ds.Responses(emotion)
	if len(responses) == 0 {
		return "", false
	}
	return s.pick(responses), true
}

// Greeting returns a random greeting
func (s *Selector) Greeting() string {
	return s.pick(s.ds.Greetings.Responses)
}

// Farewell returns a random farewell
func (s *Selector) Farewell() string {
	return s.pick(s.ds.Farewells.Responses)
}

// MatchIntent finds the first goal intent mentioned in text and a response for it
func (s *Selector) MatchIntent(text string) (dataset.Intent, string, bool) {
	lower := strings.ToLower(text)
	for _, intent := range s.ds.Intents {
		if !containsAny(lower, intent.Keywords) {
			continue
		}
		responses := s.ds.Responses(intent.Category)
		if len(responses) == 0 {
			continue
		}
		return intent, s.pick(responses), true
	}
	return dataset.Intent{}, "", false
}

// MatchRecipe finds the first recipe category mentioned in text and a recipe from it
func (s *Selector) MatchRecipe(text string) (string, string, bool) {
	lower := strings.ToLower(text)
	for _, c := range s.ds.Recipes {
		if len(c.Responses) > 0 && containsAny(lower, c.Keywords) {
			return c.Name, s.pick(c.Responses), true
		}
	}
	return "", "", false
}

func (s *Selector) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return options[s.rng.Intn(len(options))]
}

func normalize(sentiment models.Sentiment) models.Sentiment {
	switch sentiment {
	case models.SentimentPositive, models.SentimentNegative:
		return sentiment
	default:
		return models.SentimentNeutral
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
