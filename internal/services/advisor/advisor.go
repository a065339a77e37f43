// Package advisor runs the Menta reply pipeline for text, voice and photo input.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/menta-tgbot-go/internal/i18n"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/emotion"
	"github.com/menta-tgbot-go/internal/services/recommend"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/menta-tgbot-go/pkg/logger"
	"github.com/menta-tgbot-go/pkg/markdown"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrAIUnavailable is returned for voice or photo input when no AI client is configured
	ErrAIUnavailable = errors.New("ai client not configured")
	// ErrEmptyTranscription is returned when a voice note transcribes to nothing
	ErrEmptyTranscription = errors.New("empty transcription")
)

// Telegram parse modes
const (
	ParseMarkdown = "Markdown"
	ParseHTML     = "HTML"
)

// Kind names the pipeline stage that answered
type Kind string

const (
	KindGreeting       Kind = "greeting"
	KindFarewell       Kind = "farewell"
	KindEmotion        Kind = "emotion"
	KindIntent         Kind = "intent"
	KindRecipe         Kind = "recipe"
	KindRecommendation Kind = "recommendation"
	KindMeal           Kind = "meal"
)

// Transcriber turns a voice note into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// MealAnalyzer inspects a food photo
type MealAnalyzer interface {
	AnalyzeMeal(ctx context.Context, image []byte) (*models.MealAnalysis, error)
}

// InteractionRecorder persists handled messages
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, rec storage.Record) error
}

// Metrics counts pipeline outcomes
type Metrics interface {
	RecordSentiment(sentiment string)
	RecordRecommendation(source string)
}

// Reply is a ready-to-send answer plus what was inferred
type Reply struct {
	Kind           Kind
	Message        string
	ParseMode      string
	Sentiment      models.Sentiment
	Emotion        string
	Recommendation string
	Transcript     string
	Meal           *models.MealAnalysis
}

// Deps wires the service. Transcriber, Analyzer and Metrics are optional.
type Deps struct {
	Classifier  *emotion.Classifier
	Selector    *recommend.Selector
	Store       InteractionRecorder
	Localizer   *i18n.Localizer
	Transcriber Transcriber
	Analyzer    MealAnalyzer
	Metrics     Metrics
	Logger      logrus.FieldLogger
}

// Service is the message pipeline
type Service struct {
	classifier  *emotion.Classifier
	selector    *recommend.Selector
	store       InteractionRecorder
	localizer   *i18n.Localizer
	transcriber Transcriber
	analyzer    MealAnalyzer
	metrics     Metrics
	logger      logrus.FieldLogger
	titler      cases.Caser
}

func New(d Deps) *Service {
	return &Service{
		classifier:  d.Classifier,
		selector:    d.Selector,
		store:       d.Store,
		localizer:   d.Localizer,
		transcriber: d.Transcriber,
		analyzer:    d.Analyzer,
		metrics:     d.Metrics,
		logger:      d.Logger,
		titler:      cases.Title(language.Spanish),
	}
}

// HandleText answers a text message (or a transcript). Stages run in order:
// greeting, farewell, keyword emotion, goal intent, recipe, then sentiment fallback.
func (s *Service) HandleText(ctx context.Context, userID int64, lang string, inputType models.InputType, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	reply, source := s.answer(ctx, lang, inputType, text)

	s.record(ctx, userID, storage.Record{
		UserID:         userID,
		Type:           inputType,
		Text:           text,
		LogMessage:     logPrefix(inputType) + " " + text,
		Sentiment:      reply.Sentiment,
		Recommendation: reply.Recommendation,
	}, reply.Sentiment, source)

	return reply, nil
}

func (s *Service) answer(ctx context.Context, lang string, inputType models.InputType, text string) (*Reply, string) {
	if s.classifier.IsGreeting(text) {
		msg := s.selector.Greeting()
		return &Reply{Kind: KindGreeting, Message: msg, ParseMode: ParseMarkdown, Sentiment: models.SentimentPositive, Recommendation: msg}, string(KindGreeting)
	}

	if s.classifier.IsFarewell(text) {
		msg := s.selector.Farewell()
		return &Reply{Kind: KindFarewell, Message: msg, ParseMode: ParseMarkdown, Sentiment: models.SentimentNeutral, Recommendation: msg}, string(KindFarewell)
	}

	if name, ok := s.classifier.DetectEmotion(text); ok {
		if resp, ok := s.selector.ForEmotion(name); ok {
			msgID := i18n.MsgEmotionDetected
			if inputType == models.InputVoice {
				msgID = i18n.MsgVoiceEmotion
			}
			return &Reply{
				Kind:           KindEmotion,
				Message:        s.localizer.Get(lang, msgID, map[string]interface{}{"Emotion": displayName(name), "Response": resp}),
				ParseMode:      ParseMarkdown,
				Sentiment:      s.classifier.SentimentOf(name),
				Emotion:        name,
				Recommendation: resp,
			}, string(KindEmotion)
		}
	}

	if intent, resp, ok := s.selector.MatchIntent(text); ok {
		return &Reply{
			Kind:           KindIntent,
			Message:        intent.Title + "\n\n" + resp,
			ParseMode:      ParseMarkdown,
			Sentiment:      models.SentimentPositive,
			Recommendation: resp,
		}, string(KindIntent)
	}

	if category, recipe, ok := s.selector.MatchRecipe(text); ok {
		return &Reply{
			Kind:           KindRecipe,
			Message:        s.localizer.Get(lang, i18n.MsgRecipe, map[string]interface{}{"Category": s.titler.String(category), "Recipe": recipe}),
			ParseMode:      ParseMarkdown,
			Sentiment:      models.SentimentPositive,
			Recommendation: recipe,
		}, string(KindRecipe)
	}

	res := s.classifier.Classify(ctx, text)
	rec := s.selector.Recommend(text, res.Sentiment)
	msg := rec.Text
	if inputType == models.InputVoice {
		msg = s.localizer.Get(lang, i18n.MsgVoiceReflection, map[string]interface{}{"Response": rec.Text})
	}
	return &Reply{
		Kind:           KindRecommendation,
		Message:        msg,
		ParseMode:      ParseMarkdown,
		Sentiment:      res.Sentiment,
		Emotion:        res.Emotion,
		Recommendation: rec.Text,
	}, string(rec.Source)
}

// HandleVoice transcribes audio and answers the transcript
func (s *Service) HandleVoice(ctx context.Context, userID int64, lang string, audio []byte) (*Reply, error) {
	if s.transcriber == nil {
		return nil, ErrAIUnavailable
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		return nil, fmt.Errorf("transcribe voice: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, ErrEmptyTranscription
	}

	reply, err := s.HandleText(ctx, userID, lang, models.InputVoice, transcript)
	if err != nil {
		return nil, err
	}
	reply.Transcript = transcript
	return reply, nil
}

// HandlePhoto analyzes a meal photo and answers with the formatted analysis
func (s *Service) HandlePhoto(ctx context.Context, userID int64, lang string, image []byte) (*Reply, error) {
	if s.analyzer == nil {
		return nil, ErrAIUnavailable
	}

	analysis, err := s.analyzer.AnalyzeMeal(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("analyze meal: %w", err)
	}

	sentiment := s.mealSentiment(ctx, analysis)
	formatted := FormatMealAnalysis(s.localizer, lang, analysis)

	var foods, evaluation *string
	if len(analysis.Foods) > 0 {
		joined := strings.Join(analysis.Foods, ", ")
		foods = &joined
	}
	if analysis.Evaluation != "" {
		e := analysis.Evaluation
		evaluation = &e
	}

	logFoods := ""
	if foods != nil {
		logFoods = *foods
	}
	s.record(ctx, userID, storage.Record{
		UserID:         userID,
		Type:           models.InputPhoto,
		LogMessage:     logPrefix(models.InputPhoto) + " " + logFoods,
		Sentiment:      sentiment,
		Foods:          foods,
		Evaluation:     evaluation,
		Recommendation: analysis.Recommendation,
		LogResponse:    formatted,
	}, sentiment, string(KindMeal))

	return &Reply{
		Kind:           KindMeal,
		Message:        markdown.ToTelegramHTML(formatted),
		ParseMode:      ParseHTML,
		Sentiment:      sentiment,
		Recommendation: analysis.Recommendation,
		Meal:           analysis,
	}, nil
}

// mealSentiment trusts the model's verdict first and reads the advice otherwise
func (s *Service) mealSentiment(ctx context.Context, a *models.MealAnalysis) models.Sentiment {
	evaluation := strings.ToLower(strings.TrimSpace(a.Evaluation))
	switch {
	case evaluation == "saludable":
		return models.SentimentPositive
	case strings.Contains(evaluation, "poco"):
		return models.SentimentNegative
	default:
		return s.classifier.Classify(ctx, a.Recommendation).Sentiment
	}
}

func (s *Service) record(ctx context.Context, userID int64, rec storage.Record, sentiment models.Sentiment, source string) {
	if s.metrics != nil {
		s.metrics.RecordSentiment(string(sentiment))
		s.metrics.RecordRecommendation(source)
	}

	entry := logger.WithInteraction(s.logger.WithField("user_id", userID), rec.Type, sentiment)
	entry.WithField("source", source).Debug("Message answered")

	if s.store == nil {
		return
	}
	if err := s.store.RecordInteraction(ctx, rec); err != nil {
		entry.WithError(err).Warn("Failed to persist interaction")
	}
}

func logPrefix(t models.InputType) string {
	switch t {
	case models.InputVoice:
		return "[VOZ]"
	case models.InputPhoto:
		return "[FOTO]"
	default:
		return "[TEXTO]"
	}
}

func displayName(category string) string {
	return strings.ReplaceAll(category, "_", " ")
}
