// Command simulate replays a scripted conversation through the advisor without Telegram,
// filling the local memory, log and database with realistic history.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/dataset"
	"github.com/menta-tgbot-go/internal/i18n"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/advisor"
	"github.com/menta-tgbot-go/internal/services/emotion"
	"github.com/menta-tgbot-go/internal/services/recommend"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/menta-tgbot-go/pkg/logger"
)

var script = []string{
	"Hoy me siento estresado y sin energía.",
	"Me frustra no poder mantener hábitos saludables.",
	"Comí demasiado por ansiedad.",
	"Hoy me siento más tranquilo.",
	"Estoy contento con mis avances.",
	"Hoy estoy motivado y con ganas de comer mejor.",
	"Fue un día normal, sin muchos cambios.",
	"Estoy algo cansado, pero tranquilo.",
	"Estoy orgulloso de mí, mejoré mi alimentación.",
	"Hoy me siento desanimado, necesito motivación.",
}

func main() {
	dataDir := flag.String("data", "data", "Directory holding the memory, log and database files")
	userID := flag.Int64("user", 999999, "Simulated Telegram user id")
	delay := flag.Duration("delay", 500*time.Millisecond, "Base pause between messages")
	flag.Parse()

	log, err := logger.NewLogger(&config.LoggingConfig{Level: "warn", Format: "text", Output: "stdout"})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ds, err := dataset.Load(filepath.Join(*dataDir, "dataset.json"))
	if err != nil {
		log.WithError(err).Fatal("Failed to load dataset")
	}

	store, err := storage.NewManager(&config.StorageConfig{
		DataDir:    *dataDir,
		MemoryFile: filepath.Join(*dataDir, "user_memory.json"),
		LogsFile:   filepath.Join(*dataDir, "user_logs.json"),
		DBFile:     filepath.Join(*dataDir, "menta.db"),
		Logs:       config.LogsConfig{MaxEntries: 1000},
		Memory:     config.MemoryConfig{Type: "json"},
	}, nil, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer store.Close()

	localizer, err := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "es", Languages: []string{"es"}})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	svc := advisor.New(advisor.Deps{
		Classifier: emotion.NewClassifier(ds, nil, nil, log),
		Selector:   recommend.NewSelector(ds, nil),
		Store:      store,
		Localizer:  localizer,
		Logger:     log,
	})

	ctx := context.Background()
	fmt.Println("🤖 Simulando conversación del usuario con el bot...")
	fmt.Println()

	for _, text := range script {
		var previous models.Sentiment
		if memory, err := store.Memory(ctx, *userID); err == nil {
			previous = memory.CurrentSentiment
		}

		reply, err := svc.HandleText(ctx, *userID, "es", models.InputText, text)
		if err != nil {
			log.WithError(err).Error("Simulated message failed")
			continue
		}

		if note := swingNote(previous, reply.Sentiment); note != "" {
			fmt.Println(note)
		}
		fmt.Printf("🗣️ Usuario: %s\n", text)
		fmt.Printf("🤖 Bot [%s]: %s\n\n", reply.Sentiment, reply.Message)

		time.Sleep(*delay + time.Duration(rand.Int63n(int64(*delay)+1)))
	}

	fmt.Printf("✅ Simulación completada. Revisá %s para ver el historial generado.\n", filepath.Join(*dataDir, "user_logs.json"))
}

// swingNote comments on a mood change between consecutive messages
func swingNote(previous, current models.Sentiment) string {
	switch {
	case previous == models.SentimentNegative && current == models.SentimentPositive:
		return "🌞 Me alegra verte mejor que antes."
	case previous == models.SentimentPositive && current == models.SentimentNegative:
		return "💛 Te noto más apagado, pero tranquilo, eso también pasa."
	default:
		return ""
	}
}
