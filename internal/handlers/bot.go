package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/menta-tgbot-go/internal/dashboard"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/advisor"
	"github.com/sirupsen/logrus"
)

// BotAPI is the subset of *tgbotapi.BotAPI the handlers use
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Advisor answers user content
type Advisor interface {
	HandleText(ctx context.Context, userID int64, lang string, inputType models.InputType, text string) (*advisor.Reply, error)
	HandleVoice(ctx context.Context, userID int64, lang string, audio []byte) (*advisor.Reply, error)
	HandlePhoto(ctx context.Context, userID int64, lang string, image []byte) (*advisor.Reply, error)
}

// Store is the persistence the commands read
type Store interface {
	Memory(ctx context.Context, userID int64) (*models.UserMemory, error)
	ClearMemory(ctx context.Context, userID int64) error
	GlobalStats(ctx context.Context) (models.GlobalStats, error)
}

// Dashboards renders per-user reports
type Dashboards interface {
	Render(ctx context.Context, userID int64) (*dashboard.Report, error)
}

// sendText sends text with parseMode and retries as plain text when Telegram rejects the markup
func sendText(bot BotAPI, logger logrus.FieldLogger, chatID int64, replyTo int, text, parseMode string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.ReplyToMessageID = replyTo

	sent, err := bot.Send(msg)
	if err == nil || parseMode == "" {
		return sent, err
	}

	logger.WithError(err).Warn("Failed to send formatted message, trying plain text")
	msg.ParseMode = ""
	return bot.Send(msg)
}

// editText replaces a previously sent message, with the same plain-text fallback
func editText(bot BotAPI, logger logrus.FieldLogger, chatID int64, messageID int, text, parseMode string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = parseMode

	_, err := bot.Send(edit)
	if err == nil || parseMode == "" {
		return err
	}

	logger.WithError(err).Warn("Failed to edit formatted message, trying plain text")
	edit.ParseMode = ""
	_, err = bot.Send(edit)
	return err
}

// chatAction sends a typing or upload indicator and logs failures at debug level
func chatAction(bot BotAPI, logger logrus.FieldLogger, chatID int64, action string) {
	if _, err := bot.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		logger.WithError(err).WithField("action", action).Debug("Failed to send chat action")
	}
}

func userLanguage(from *tgbotapi.User, fallback string) string {
	if from != nil && from.LanguageCode != "" {
		return from.LanguageCode
	}
	return fallback
}
