package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/ai"
	"github.com/hray3182/MedLine/internal/app"
	"github.com/hray3182/MedLine/internal/bot"
	"github.com/hray3182/MedLine/internal/bot/handlers"
	"github.com/hray3182/MedLine/internal/config"
	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/notify"
	"github.com/hray3182/MedLine/internal/scheduler"
	"github.com/hray3182/MedLine/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate required config
	if cfg.DatabaseURI == "" && !cfg.UseMemoryStore() {
		log.Fatal("DATABASE_URI is required (or set DEV_MODE=true for the in-memory store)")
	}
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stores service.Stores
	if cfg.UseMemoryStore() {
		stores = app.MemoryStores()
		log.Println("Using in-memory store, data will not survive a restart")
	} else {
		db, err := database.New(ctx, cfg.DatabaseURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to database")

		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations completed")
		stores = app.PostgresStores(db)
	}

	// Initialize AI classifier (optional)
	var classifier ai.Classifier
	if cfg.AIAPIKey != "" {
		classifier = ai.NewCachedClassifier(ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel), cfg.ClassifierCacheSize)
		log.Printf("AI client initialized (model: %s)", cfg.AIModel)
	} else {
		log.Println("AI client not configured, using keyword replies only")
	}

	// One Telegram client for both notifications and updates
	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram API: %v", err)
	}
	tgAPI.Debug = cfg.DevMode

	services := service.New(stores, notify.NewTelegram(tgAPI), app.Settings(cfg))

	sched := scheduler.New(services.Dispatcher, cfg.DispatchSchedule, cfg.Location, services.Now)
	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
			cancel()
		}
	}()

	h := handlers.New(tgAPI, services, handlers.Deps{
		Users:      stores.Users,
		Classifier: classifier,
		Wakeup:     sched.Notify,
	}, cfg.DevMode)
	b := bot.New(tgAPI, h)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	log.Println("Starting bot...")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Bot error: %v", err)
	}
}
