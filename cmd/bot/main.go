package main

import (
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/agent"
	"github.com/themoiziqbal/todo-chatbot/internal/bot"
	"github.com/themoiziqbal/todo-chatbot/internal/conversation"
	"github.com/themoiziqbal/todo-chatbot/internal/i18n"
	"github.com/themoiziqbal/todo-chatbot/internal/reminder"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
	"github.com/themoiziqbal/todo-chatbot/internal/tools"
	"github.com/themoiziqbal/todo-chatbot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Shared OpenAI client for the agent and the translator
	client := openai.NewClient(cfg.OpenAI.APIKey)
	translator := i18n.NewTranslator(client, cfg.OpenAI.Model, 15*time.Second, logger)

	// Wire the tool handlers and the chat agent
	registry := tools.New(store, logger).Registry()
	conversations := conversation.New(store, logger)
	chatAgent := agent.New(client, registry, conversations, translator, logger, agent.Config{
		Model:           cfg.OpenAI.Model,
		MaxTokens:       cfg.OpenAI.MaxTokens,
		Temperature:     float32(cfg.OpenAI.Temperature),
		MaxToolRounds:   cfg.Agent.MaxToolRounds,
		ContextMessages: cfg.Agent.ContextMessages,
		CallTimeout:     cfg.Agent.CallTimeout,
	})

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, chatAgent, store, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Due-task reminders
	if cfg.Reminder.Enabled {
		sweeper := reminder.New(store, b, logger, cfg.Reminder.Schedule, cfg.Reminder.Window)
		if err := sweeper.Start(); err != nil {
			logger.Fatal("Failed to start reminder sweeper", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
