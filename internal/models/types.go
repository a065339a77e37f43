package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Sentiment is the coarse polarity label attached to every interaction
type Sentiment string

const (
	SentimentPositive Sentiment = "POS"
	SentimentNegative Sentiment = "NEG"
	SentimentNeutral  Sentiment = "NEU"
)

// Value returns the numeric level used by charts: -1, 0 or +1
func (s Sentiment) Value() float64 {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// ParseSentiment normalizes a model label such as "POSITIVE" or "neg"
func ParseSentiment(label string) Sentiment {
	upper := strings.ToUpper(label)
	switch {
	case strings.Contains(upper, "POS"):
		return SentimentPositive
	case strings.Contains(upper, "NEG"):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// InputType is the kind of Telegram content that produced an interaction
type InputType string

const (
	InputText  InputType = "text"
	InputVoice InputType = "voice"
	InputPhoto InputType = "photo"
)

// Interaction is one row of the interactions table
type Interaction struct {
	ID             int64
	UserID         int64
	Timestamp      time.Time
	Type           InputType
	Text           string
	Sentiment      Sentiment
	Foods          *string
	Evaluation     *string
	Recommendation *string
}

// LogEntry is one element of the capped JSON interaction log
type LogEntry struct {
	UserID    string    `json:"user_id"`
	Date      string    `json:"fecha"`
	Message   string    `json:"mensaje"`
	Sentiment Sentiment `json:"sentimiento"`
	Response  string    `json:"respuesta"`
}

// SentimentCounts holds running per-label totals
type SentimentCounts struct {
	Positive int `json:"positivos"`
	Negative int `json:"negativos"`
	Neutral  int `json:"neutros"`
}

// Naive isoformat() layout written by the legacy bot
const legacyTimestampLayout = "2006-01-02T15:04:05.999999"

// Timestamp marshals as RFC 3339 and also accepts legacy naive timestamps,
// which are read in local time
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return t.Time.MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		t.Time = time.Time{}
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339Nano, *raw); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(legacyTimestampLayout, *raw, time.Local)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// UserMemory is the per-user aggregate kept between conversations
type UserMemory struct {
	FirstInteraction   Timestamp       `json:"primera_interaccion"`
	LastInteraction    Timestamp       `json:"ultima_interaccion"`
	TotalInteractions  int             `json:"total_interacciones"`
	Stats              SentimentCounts `json:"estadisticas"`
	CurrentSentiment   Sentiment       `json:"sentimiento_actual,omitempty"`
	LastRecommendation string          `json:"ultima_recomendacion,omitempty"`
}

// Apply folds one interaction into the aggregate
func (m *UserMemory) Apply(at time.Time, sentiment Sentiment, recommendation string) {
	if m.FirstInteraction.IsZero() {
		m.FirstInteraction = Timestamp{at}
	}
	m.LastInteraction = Timestamp{at}
	m.TotalInteractions++
	m.CurrentSentiment = sentiment
	m.LastRecommendation = recommendation

	switch sentiment {
	case SentimentPositive:
		m.Stats.Positive++
	case SentimentNegative:
		m.Stats.Negative++
	default:
		m.Stats.Neutral++
	}
}

// PositiveRatio returns the share of positive interactions as a percentage
func (m *UserMemory) PositiveRatio() float64 {
	if m.TotalInteractions == 0 {
		return 0
	}
	return float64(m.Stats.Positive) / float64(m.TotalInteractions) * 100
}

// MealAnalysis is the structured verdict returned by the vision model
type MealAnalysis struct {
	Foods             []string `json:"alimentos"`
	Evaluation        string   `json:"evaluacion"`
	EstimatedCalories string   `json:"calorias_estimadas,omitempty"`
	Positives         []string `json:"aspectos_positivos,omitempty"`
	Improvements      []string `json:"aspectos_mejorar,omitempty"`
	Recommendation    string   `json:"recomendacion"`
}

// GlobalStats summarizes usage across all users
type GlobalStats struct {
	UniqueUsers       int
	TotalInteractions int
}

// CacheEntry represents a cached sentiment label
type CacheEntry struct {
	Text      string
	Sentiment Sentiment
	CreatedAt time.Time
}
