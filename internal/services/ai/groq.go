package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const sentimentPrompt = "Clasificá el sentimiento del mensaje del usuario. " +
	"Respondé únicamente con una etiqueta: POS, NEG o NEU."

// Recorder receives request timings
type Recorder interface {
	RecordAIRequest(model, status string, duration time.Duration)
}

// GroqClient talks to Groq's OpenAI-compatible API for speech, vision and sentiment
type GroqClient struct {
	client     *openai.Client
	cfg        config.AIConfig
	metrics    Recorder
	logger     logrus.FieldLogger
	maxRetries int
	backoff    time.Duration
}

// NewGroqClient creates a client for the configured endpoint
func NewGroqClient(cfg *config.AIConfig, metrics Recorder, logger logrus.FieldLogger) *GroqClient {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	oaCfg.HTTPClient = &http.Client{Timeout: timeout}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	logger.WithFields(logrus.Fields{
		"baseURL":    oaCfg.BaseURL,
		"transcribe": cfg.TranscribeModel,
		"vision":     cfg.VisionModel,
		"sentiment":  cfg.SentimentModel,
	}).Info("AI client initialized")

	return &GroqClient{
		client:     openai.NewClientWithConfig(oaCfg),
		cfg:        *cfg,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
		backoff:    2 * time.Second,
	}
}

// Transcribe converts a voice note to text
func (c *GroqClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}

	var text string
	err := c.withRetry(ctx, c.cfg.TranscribeModel, func(ctx context.Context) error {
		resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.cfg.TranscribeModel,
			FilePath: filename,
			Reader:   bytes.NewReader(audio),
			Prompt:   c.cfg.TranscribePrompt,
			Language: c.cfg.Language,
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return text, nil
}

// AnalyzeMeal sends a food photo to the vision model and parses its JSON verdict
func (c *GroqClient) AnalyzeMeal(ctx context.Context, image []byte) (*models.MealAnalysis, error) {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))

	var raw string
	err := c.withRetry(ctx, c.cfg.VisionModel, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.VisionModel,
			Messages: []openai.ChatCompletionMessage{{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: MealPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			}},
			Temperature: 0.7,
			MaxTokens:   1024,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response from vision model")
		}
		raw = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("meal analysis failed: %w", err)
	}

	return ParseMealAnalysis(raw), nil
}

// Sentiment labels text as POS, NEG or NEU with a chat model
func (c *GroqClient) Sentiment(ctx context.Context, text string) (models.Sentiment, error) {
	var label string
	err := c.withRetry(ctx, c.cfg.SentimentModel, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.SentimentModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sentimentPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			MaxTokens: 4,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response from sentiment model")
		}
		label = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return models.SentimentNeutral, fmt.Errorf("sentiment request failed: %w", err)
	}
	return models.ParseSentiment(label), nil
}

// withRetry retries fn with exponential backoff (2s, 4s, ...). Client errors are not retried.
func (c *GroqClient) withRetry(ctx context.Context, model string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		start := time.Now()
		err := fn(ctx)
		c.record(model, err, time.Since(start))
		if err == nil {
			return nil
		}

		lastErr = err
		if !retryable(err) {
			return err
		}

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"model":   model,
		}).WithError(err).Warn("AI request failed, retrying...")

		if attempt < c.maxRetries {
			wait := c.backoff << uint(attempt-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return fmt.Errorf("all retry attempts failed: %w", lastErr)
}

func (c *GroqClient) record(model string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordAIRequest(model, status, d)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	// Don't retry client errors other than rate limiting
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return false
	}
	return true
}
