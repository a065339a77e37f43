package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer from the embedded locale files
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	defaultLang := cfg.DefaultLanguage
	if defaultLang == "" {
		defaultLang = "es"
	}

	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{defaultLang}
	}

	for _, lang := range languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang, defaultLang)
	}
	if _, ok := localizers[defaultLang]; !ok {
		localizers[defaultLang] = i18n.NewLocalizer(bundle, defaultLang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLang,
		localizers:      localizers,
	}, nil
}

// Get returns localized message. lang may be a Telegram language code such as "en-US".
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[baseLanguage(lang)]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// DefaultLanguage returns the fallback language code
func (l *Localizer) DefaultLanguage() string {
	return l.defaultLanguage
}

func baseLanguage(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

// Message IDs
const (
	MsgWelcome           = "welcome"
	MsgHelp              = "help"
	MsgResetDone         = "reset_done"
	MsgProgressEmpty     = "progress_empty"
	MsgProgress          = "progress"
	MsgProgressExcellent = "progress_excellent"
	MsgProgressGood      = "progress_good"
	MsgProgressAdvancing = "progress_advancing"
	MsgProgressSupport   = "progress_support"
	MsgDashboardCaption  = "dashboard_caption"
	MsgDashboardFailed   = "dashboard_failed"
	MsgStats             = "stats"
	MsgStatsFailed       = "stats_failed"
	MsgError             = "error"
	MsgMessageTooLong    = "message_too_long"
	MsgRateLimitExceeded = "rate_limit_exceeded"
	MsgUnknownCommand    = "unknown_command"
	MsgEmotionDetected   = "emotion_detected"
	MsgRecipe            = "recipe"
	MsgVoiceReceived     = "voice_received"
	MsgVoiceFailed       = "voice_failed"
	MsgVoiceEmpty        = "voice_empty"
	MsgVoiceTranscript   = "voice_transcript"
	MsgVoiceEmotion      = "voice_emotion"
	MsgVoiceReflection   = "voice_reflection"
	MsgPhotoAnalyzing    = "photo_analyzing"
	MsgPhotoFailed       = "photo_failed"
	MsgAIUnavailable     = "ai_unavailable"
	MsgMealTitle         = "meal_title"
	MsgMealFoods         = "meal_foods"
	MsgMealEvaluation    = "meal_evaluation"
	MsgMealCalories      = "meal_calories"
	MsgMealPositives     = "meal_positives"
	MsgMealImprovements  = "meal_improvements"
	MsgMealAdvice        = "meal_advice"
)
