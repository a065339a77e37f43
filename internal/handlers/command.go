package handlers

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/i18n"
	"github.com/menta-tgbot-go/internal/middleware"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/advisor"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/menta-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Encouragement tiers for /progreso, by share of positive interactions
const (
	tierExcellent = 70.0
	tierGood      = 50.0
	tierAdvancing = 30.0
)

// CommandHandler handles telegram commands
type CommandHandler struct {
	bot         BotAPI
	config      *config.Config
	storage     Store
	dashboards  Dashboards
	rateLimiter middleware.RateLimiter
	localizer   *i18n.Localizer
	metrics     *middleware.Metrics
	logger      logrus.FieldLogger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	bot BotAPI,
	cfg *config.Config,
	store Store,
	dashboards Dashboards,
	rateLimiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger logrus.FieldLogger,
) *CommandHandler {
	return &CommandHandler{
		bot:         bot,
		config:      cfg,
		storage:     store,
		dashboards:  dashboards,
		rateLimiter: rateLimiter,
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleCommand processes telegram commands
func (h *CommandHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID
	command := message.Command()
	lang := userLanguage(message.From, h.config.I18n.DefaultLanguage)

	h.metrics.RecordCommandExecuted(command)
	logger.WithContext(h.logger, chatID, userID).WithField("command", command).Info("Command received")

	switch command {
	case "start":
		return h.handleStart(chatID, message.From, lang)
	case "reset":
		return h.handleReset(ctx, chatID, message.From, lang)
	case "help", "ayuda":
		return h.handleHelp(chatID, lang)
	case "progreso":
		return h.handleProgress(ctx, chatID, userID, lang)
	case "dashboard":
		return h.handleDashboard(ctx, chatID, userID, lang)
	case "stats":
		return h.handleStats(ctx, chatID, lang)
	default:
		return h.handleUnknown(chatID, lang)
	}
}

// handleStart handles /start command
func (h *CommandHandler) handleStart(chatID int64, from *tgbotapi.User, lang string) error {
	text := h.localizer.Get(lang, i18n.MsgWelcome, map[string]interface{}{
		"Name": from.FirstName,
	})
	_, err := sendText(h.bot, h.logger, chatID, 0, text, advisor.ParseMarkdown)
	return err
}

// handleReset forgets the user's memory and rate limit bucket, then greets again
func (h *CommandHandler) handleReset(ctx context.Context, chatID int64, from *tgbotapi.User, lang string) error {
	if err := h.storage.ClearMemory(ctx, from.ID); err != nil {
		h.logger.WithError(err).WithField("user_id", from.ID).Error("Failed to clear memory")
	}
	h.rateLimiter.Reset(from.ID)

	if _, err := sendText(h.bot, h.logger, chatID, 0, h.localizer.Get(lang, i18n.MsgResetDone, nil), ""); err != nil {
		return err
	}
	return h.handleStart(chatID, from, lang)
}

// handleHelp handles /help and /ayuda
func (h *CommandHandler) handleHelp(chatID int64, lang string) error {
	_, err := sendText(h.bot, h.logger, chatID, 0, h.localizer.Get(lang, i18n.MsgHelp, nil), advisor.ParseMarkdown)
	return err
}

// handleProgress summarizes the user's memory with a tiered encouragement
func (h *CommandHandler) handleProgress(ctx context.Context, chatID int64, userID int64, lang string) error {
	memory, err := h.storage.Memory(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to load memory")
	}
	if memory == nil || memory.TotalInteractions == 0 {
		_, err := sendText(h.bot, h.logger, chatID, 0, h.localizer.Get(lang, i18n.MsgProgressEmpty, nil), "")
		return err
	}

	_, err = sendText(h.bot, h.logger, chatID, 0, h.progressText(memory, lang), advisor.ParseMarkdown)
	return err
}

func (h *CommandHandler) progressText(memory *models.UserMemory, lang string) string {
	ratio := memory.PositiveRatio()

	text := h.localizer.Get(lang, i18n.MsgProgress, map[string]interface{}{
		"Total":    memory.TotalInteractions,
		"Positive": memory.Stats.Positive,
		"Percent":  fmt.Sprintf("%.1f", ratio),
		"Negative": memory.Stats.Negative,
		"Neutral":  memory.Stats.Neutral,
		"LastDate": memory.LastInteraction.Local().Format("02/01/2006 15:04"),
	})

	tier := i18n.MsgProgressSupport
	switch {
	case ratio >= tierExcellent:
		tier = i18n.MsgProgressExcellent
	case ratio >= tierGood:
		tier = i18n.MsgProgressGood
	case ratio >= tierAdvancing:
		tier = i18n.MsgProgressAdvancing
	}

	return text + h.localizer.Get(lang, tier, nil)
}

// handleDashboard renders the HTML report and sends it with its charts
func (h *CommandHandler) handleDashboard(ctx context.Context, chatID int64, userID int64, lang string) error {
	chatAction(h.bot, h.logger, chatID, tgbotapi.ChatUploadDocument)

	report, err := h.dashboards.Render(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to render dashboard")
		_, sendErr := sendText(h.bot, h.logger, chatID, 0, h.localizer.Get(lang, i18n.MsgDashboardFailed, nil), "")
		return sendErr
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(report.Path))
	doc.Caption = h.localizer.Get(lang, i18n.MsgDashboardCaption, nil)
	if _, err := h.bot.Send(doc); err != nil {
		return fmt.Errorf("send dashboard: %w", err)
	}

	for _, chart := range report.Charts {
		if _, err := h.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(chart))); err != nil {
			h.logger.WithError(err).WithField("chart", chart).Warn("Failed to send chart")
		}
	}
	return nil
}

// handleStats reports global usage and the configured models
func (h *CommandHandler) handleStats(ctx context.Context, chatID int64, lang string) error {
	stats, err := h.storage.GlobalStats(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load global stats")
		_, sendErr := sendText(h.bot, h.logger, chatID, 0, h.localizer.Get(lang, i18n.MsgStatsFailed, nil), "")
		return sendErr
	}

	text := h.localizer.Get(lang, i18n.MsgStats, map[string]interface{}{
		"Users":           stats.UniqueUsers,
		"Interactions":    stats.TotalInteractions,
		"SentimentModel":  h.config.AI.SentimentModel,
		"TranscribeModel": h.config.AI.TranscribeModel,
		"VisionModel":     h.config.AI.VisionModel,
	})
	_, err = sendText(h.bot, h.logger, chatID, 0, text, advisor.ParseMarkdown)
	return err
}

// handleUnknown handles unknown commands
func (h *CommandHandler) handleUnknown(chatID int64, lang string) error {
	_, err := sendText(h.bot, h.logger, chatID, 0, h.localizer.Get(lang, i18n.MsgUnknownCommand, nil), "")
	return err
}
