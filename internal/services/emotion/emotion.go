// Package emotion labels user text with an emotion and a coarse sentiment.
package emotion

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/menta-tgbot-go/internal/dataset"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxModelInput is the longest text handed to the sentiment model, in runes
const MaxModelInput = 512

// Source tells which stage produced a Result
type Source string

const (
	SourceKeyword Source = "keyword"
	SourceModel   Source = "model"
	SourceDefault Source = "default"
)

// Model is an external sentiment classifier
type Model interface {
	Sentiment(ctx context.Context, text string) (models.Sentiment, error)
}

// Cache stores model labels by text
type Cache interface {
	Get(text string) (models.Sentiment, bool)
	Set(text string, sentiment models.Sentiment)
}

// Result is the outcome of Classify. Emotion is empty unless a keyword matched.
type Result struct {
	Emotion   string
	Sentiment models.Sentiment
	Source    Source
}

// Classifier scans the dataset keyword lists and falls back to a model
type Classifier struct {
	ds     *dataset.Dataset
	model  Model
	cache  Cache
	logger logrus.FieldLogger
}

// NewClassifier builds a classifier. model and cache may be nil.
func NewClassifier(ds *dataset.Dataset, model Model, cache Cache, logger logrus.FieldLogger) *Classifier {
	return &Classifier{ds: ds, model: model, cache: cache, logger: logger}
}

// DetectEmotion returns the first emotion whose keyword occurs in text.
// Negative emotions are checked before positive ones.
func (c *Classifier) DetectEmotion(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, group := range [][]dataset.Category{c.ds.NegativeEmotions, c.ds.PositiveEmotions} {
		for _, emotion := range group {
			for _, kw := range emotion.Keywords {
				if strings.Contains(lower, kw) {
					return emotion.Name, true
				}
			}
		}
	}
	return "", false
}

// SentimentOf maps an emotion to its polarity
func (c *Classifier) SentimentOf(emotion string) models.Sentiment {
	if c.ds.IsNegativeEmotion(emotion) {
		return models.SentimentNegative
	}
	return models.SentimentPositive
}

// Classify runs keyword detection, then the model, then defaults to neutral
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	if emotion, ok := c.DetectEmotion(text); ok {
		return Result{Emotion: emotion, Sentiment: c.SentimentOf(emotion), Source: SourceKeyword}
	}

	if sentiment, ok := c.ModelSentiment(ctx, text); ok {
		return Result{Sentiment: sentiment, Source: SourceModel}
	}
	return Result{Sentiment: models.SentimentNeutral, Source: SourceDefault}
}

// ModelSentiment asks the model only. It reports false when no model answered.
func (c *Classifier) ModelSentiment(ctx context.Context, text string) (models.Sentiment, bool) {
	text = strings.TrimSpace(text)
	if text == "" || c.model == nil {
		return "", false
	}
	text = truncateRunes(text, MaxModelInput)

	if c.cache != nil {
		if sentiment, ok := c.cache.Get(text); ok {
			return sentiment, true
		}
	}

	sentiment, err := c.model.Sentiment(ctx, text)
	if err != nil {
		c.logger.WithError(err).Warn("Sentiment model failed, using neutral")
		return "", false
	}

	if c.cache != nil {
		c.cache.Set(text, sentiment)
	}
	return sentiment, true
}

// IsGreeting reports whether text is a short greeting or starts with one
func (c *Classifier) IsGreeting(text string) bool {
	return matchesPhrase(text, c.ds.Greetings)
}

// IsFarewell reports whether text is a short farewell or starts with one
func (c *Classifier) IsFarewell(text string) bool {
	return matchesPhrase(text, c.ds.Farewells)
}

func matchesPhrase(text string, phrases dataset.Phrases) bool {
	lower := strings.TrimSpace(strings.ToLower(text))
	words := len(strings.Fields(lower))
	for _, pattern := range phrases.Patterns {
		if !strings.Contains(lower, pattern) {
			continue
		}
		if words <= phrases.MaxWords || strings.HasPrefix(lower, pattern) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
