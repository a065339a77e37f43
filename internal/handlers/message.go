package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/i18n"
	"github.com/menta-tgbot-go/internal/middleware"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/advisor"
	"github.com/menta-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// downloadLimit caps voice notes and photos fetched from Telegram
const downloadLimit = 20 << 20

// MessageHandler handles text, voice and photo messages
type MessageHandler struct {
	config      *config.Config
	bot         BotAPI
	advisor     Advisor
	rateLimiter middleware.RateLimiter
	localizer   *i18n.Localizer
	metrics     *middleware.Metrics
	logger      logrus.FieldLogger
	httpClient  *http.Client
	wg          sync.WaitGroup
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	cfg *config.Config,
	bot BotAPI,
	adv Advisor,
	rateLimiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger logrus.FieldLogger,
) *MessageHandler {
	return &MessageHandler{
		config:      cfg,
		bot:         bot,
		advisor:     adv,
		rateLimiter: rateLimiter,
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
		httpClient:  &http.Client{Timeout: time.Minute},
	}
}

// HandleMessage processes non-command messages
func (h *MessageHandler) HandleMessage(ctx context.Context, update *tgbotapi.Update) error {
	message := update.Message
	if message == nil || message.IsCommand() || message.From == nil {
		return nil
	}

	chatID := message.Chat.ID
	userID := message.From.ID
	lang := userLanguage(message.From, h.config.I18n.DefaultLanguage)
	log := logger.WithContext(h.logger, chatID, userID)

	var inputType models.InputType
	switch {
	case message.Voice != nil:
		inputType = models.InputVoice
	case len(message.Photo) > 0:
		inputType = models.InputPhoto
	case message.Text != "":
		inputType = models.InputText
	default:
		return nil
	}
	h.metrics.RecordMessageReceived(string(inputType))

	if !h.rateLimiter.Allow(userID) {
		_, err := sendText(h.bot, log, chatID, message.MessageID, h.localizer.Get(lang, i18n.MsgRateLimitExceeded, nil), "")
		return err
	}

	switch inputType {
	case models.InputVoice:
		return h.handleVoice(ctx, message, lang, log)
	case models.InputPhoto:
		return h.handlePhoto(ctx, message, lang, log)
	default:
		return h.handleText(ctx, message, lang, log)
	}
}

// Wait blocks until background voice and photo work has finished
func (h *MessageHandler) Wait() {
	h.wg.Wait()
}

func (h *MessageHandler) handleText(ctx context.Context, message *tgbotapi.Message, lang string, log *logrus.Entry) error {
	chatID := message.Chat.ID

	if err := middleware.ValidateInput(message.Text); err != nil {
		log.WithError(err).Warn("Input validation failed")
		_, sendErr := sendText(h.bot, log, chatID, message.MessageID, h.localizer.Get(lang, i18n.MsgMessageTooLong, nil), "")
		return sendErr
	}

	chatAction(h.bot, log, chatID, tgbotapi.ChatTyping)

	reply, err := h.advisor.HandleText(ctx, message.From.ID, lang, models.InputText, message.Text)
	if err != nil {
		log.WithError(err).Error("Failed to handle text message")
		sendText(h.bot, log, chatID, message.MessageID, h.localizer.Get(lang, i18n.MsgError, nil), "")
		return err
	}

	_, err = sendText(h.bot, log, chatID, 0, reply.Message, reply.ParseMode)
	return err
}

func (h *MessageHandler) handleVoice(ctx context.Context, message *tgbotapi.Message, lang string, log *logrus.Entry) error {
	ack, err := sendText(h.bot, log, message.Chat.ID, message.MessageID, h.localizer.Get(lang, i18n.MsgVoiceReceived, nil), "")
	if err != nil {
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.processVoice(ctx, message, ack.MessageID, lang, log)
	}()
	return nil
}

func (h *MessageHandler) processVoice(ctx context.Context, message *tgbotapi.Message, ackID int, lang string, log *logrus.Entry) {
	chatID := message.Chat.ID

	audio, err := h.download(ctx, message.Voice.FileID, fmt.Sprintf("%d_*.ogg", message.From.ID))
	if err != nil {
		log.WithError(err).Error("Failed to download voice note")
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgVoiceFailed, nil), log)
		return
	}

	reply, err := h.advisor.HandleVoice(ctx, message.From.ID, lang, audio)
	switch {
	case errors.Is(err, advisor.ErrEmptyTranscription):
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgVoiceEmpty, nil), log)
		return
	case errors.Is(err, advisor.ErrAIUnavailable):
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgAIUnavailable, nil), log)
		return
	case err != nil:
		log.WithError(err).Error("Failed to process voice note")
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgVoiceFailed, nil), log)
		return
	}

	transcript := h.localizer.Get(lang, i18n.MsgVoiceTranscript, map[string]interface{}{"Text": reply.Transcript})
	if err := editText(h.bot, log, chatID, ackID, transcript, advisor.ParseMarkdown); err != nil {
		log.WithError(err).Warn("Failed to show transcript")
	}
	if _, err := sendText(h.bot, log, chatID, 0, reply.Message, reply.ParseMode); err != nil {
		log.WithError(err).Error("Failed to send voice reply")
	}
}

func (h *MessageHandler) handlePhoto(ctx context.Context, message *tgbotapi.Message, lang string, log *logrus.Entry) error {
	ack, err := sendText(h.bot, log, message.Chat.ID, message.MessageID, h.localizer.Get(lang, i18n.MsgPhotoAnalyzing, nil), "")
	if err != nil {
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.processPhoto(ctx, message, ack.MessageID, lang, log)
	}()
	return nil
}

func (h *MessageHandler) processPhoto(ctx context.Context, message *tgbotapi.Message, ackID int, lang string, log *logrus.Entry) {
	chatID := message.Chat.ID
	// Telegram lists sizes smallest first
	largest := message.Photo[len(message.Photo)-1]

	image, err := h.download(ctx, largest.FileID, fmt.Sprintf("%d_*.jpg", message.From.ID))
	if err != nil {
		log.WithError(err).Error("Failed to download photo")
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgPhotoFailed, nil), log)
		return
	}

	reply, err := h.advisor.HandlePhoto(ctx, message.From.ID, lang, image)
	switch {
	case errors.Is(err, advisor.ErrAIUnavailable):
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgAIUnavailable, nil), log)
		return
	case err != nil:
		log.WithError(err).Error("Failed to analyze photo")
		h.fail(chatID, ackID, h.localizer.Get(lang, i18n.MsgPhotoFailed, nil), log)
		return
	}

	if err := editText(h.bot, log, chatID, ackID, reply.Message, reply.ParseMode); err != nil {
		log.WithError(err).Error("Failed to send meal analysis")
	}
}

func (h *MessageHandler) fail(chatID int64, ackID int, text string, log *logrus.Entry) {
	if err := editText(h.bot, log, chatID, ackID, text, ""); err != nil {
		log.WithError(err).Error("Failed to send error message")
	}
}

// download fetches a Telegram file through the temp dir and returns its bytes
func (h *MessageHandler) download(ctx context.Context, fileID, pattern string) ([]byte, error) {
	url, err := h.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	dir := h.config.Storage.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(pattern))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, downloadLimit)); err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}
	return os.ReadFile(tmp.Name())
}
