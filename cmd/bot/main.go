package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/dashboard"
	"github.com/menta-tgbot-go/internal/dataset"
	"github.com/menta-tgbot-go/internal/handlers"
	"github.com/menta-tgbot-go/internal/i18n"
	"github.com/menta-tgbot-go/internal/middleware"
	"github.com/menta-tgbot-go/internal/scheduler"
	"github.com/menta-tgbot-go/internal/services/advisor"
	"github.com/menta-tgbot-go/internal/services/ai"
	"github.com/menta-tgbot-go/internal/services/cache"
	"github.com/menta-tgbot-go/internal/services/emotion"
	"github.com/menta-tgbot-go/internal/services/recommend"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/menta-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Menta bot...")
	log.WithField("token_length", len(cfg.Bot.Token)).Info("Bot token loaded")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}
	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := middleware.NewMetrics()

	// Seed the editable dataset on first run
	if err := dataset.WriteDefault(cfg.Dataset.Path); err != nil {
		log.WithError(err).Warn("Failed to write default dataset")
	}
	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to load dataset")
	}

	storageManager, err := storage.NewManager(&cfg.Storage, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer storageManager.Close()

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	deps := advisor.Deps{
		Selector:  recommend.NewSelector(ds, nil),
		Store:     storageManager,
		Localizer: localizer,
		Metrics:   metrics,
		Logger:    log,
	}

	var sentimentModel emotion.Model
	if cfg.AI.Enabled {
		groq := ai.NewGroqClient(&cfg.AI, metrics, log)
		sentimentModel = groq
		deps.Transcriber = groq
		deps.Analyzer = groq
		log.WithFields(logrus.Fields{
			"transcribe": cfg.AI.TranscribeModel,
			"vision":     cfg.AI.VisionModel,
			"sentiment":  cfg.AI.SentimentModel,
		}).Info("AI client configured")
	} else {
		log.Warn("AI disabled: voice and photo analysis unavailable, sentiment falls back to keywords")
	}

	sentimentCache := cache.NewSentimentCache(&cfg.Cache, metrics, log)
	deps.Classifier = emotion.NewClassifier(ds, sentimentModel, sentimentCache, log)
	advisorService := advisor.New(deps)

	renderer := dashboard.NewRenderer(&cfg.Dashboard, storageManager, metrics, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, metrics, log)

	if cfg.Monitoring.Metrics.Enabled {
		router := middleware.NewRouter(cfg.Monitoring.Metrics.Path, renderer, log)
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(ctx, cfg.Monitoring.Metrics.Port, router); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	jobs := scheduler.New(&cfg.Scheduler, cfg.Storage.TempDir, storageManager, metrics, rateLimiter, log)
	if err := jobs.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}
	defer jobs.Stop()

	commandHandler := handlers.NewCommandHandler(
		bot,
		cfg,
		storageManager,
		renderer,
		rateLimiter,
		localizer,
		metrics,
		log,
	)

	messageHandler := handlers.NewMessageHandler(
		cfg,
		bot,
		advisorService,
		rateLimiter,
		localizer,
		metrics,
		log,
	)

	var updates tgbotapi.UpdatesChannel

	if cfg.Bot.Webhook.Enabled {
		webhookURL := fmt.Sprintf("%s/%s", cfg.Bot.Webhook.URL, bot.Token)
		webhook, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to create webhook")
		}

		if _, err := bot.Request(webhook); err != nil {
			log.WithError(err).Fatal("Failed to set webhook")
		}

		updates = bot.ListenForWebhook("/" + bot.Token)
		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Bot.Webhook.Port), nil); err != nil {
				log.WithError(err).Error("Webhook server failed")
			}
		}()
		log.WithField("port", cfg.Bot.Webhook.Port).Info("Webhook set")
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Bot.UpdateTimeout

		updates = bot.GetUpdatesChan(u)
		log.Info("Using long polling")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for update := range updates {
			if update.Message == nil {
				continue
			}

			if update.Message.IsCommand() {
				if err := commandHandler.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
					metrics.RecordMessageProcessed("error")
				} else {
					metrics.RecordMessageProcessed("success")
				}
				continue
			}

			if err := messageHandler.HandleMessage(ctx, &update); err != nil {
				log.WithError(err).Error("Failed to handle message")
				metrics.RecordMessageProcessed("error")
			} else {
				metrics.RecordMessageProcessed("success")
			}
		}
	}()

	<-sigChan
	log.Info("Shutdown signal received")

	if cfg.Bot.Webhook.Enabled {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.WithError(err).Error("Failed to delete webhook")
		}
	} else {
		bot.StopReceivingUpdates()
	}

	// Let in-flight voice and photo replies finish before closing storage
	messageHandler.Wait()
	cancel()

	log.Info("Bot stopped")
}
