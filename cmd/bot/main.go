package main

import (
	"context"
	"fmt"

	"github.com/xaenox/support-bot/internal/analytics"
	"github.com/xaenox/support-bot/internal/api"
	"github.com/xaenox/support-bot/internal/bot"
	"github.com/xaenox/support-bot/internal/storage"
	"github.com/xaenox/support-bot/pkg/config"
	"go.uber.org/zap"
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
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	reporter := analytics.NewReporter(store, logger)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, store, reporter, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Enroll configured managers
	ctx := context.Background()
	for _, id := range cfg.Managers.IDs {
		isAdmin := id == cfg.Managers.AdminID
		name := fmt.Sprintf("Manager %d", id)
		if err := b.Service().RegisterManager(ctx, id, name, isAdmin); err != nil {
			logger.Error("Failed to register manager",
				zap.Error(err),
				zap.Int64("manager_id", id))
		}
	}

	// Start the report scheduler
	if cfg.Managers.AdminID != 0 {
		scheduler := analytics.NewScheduler(reporter, b, cfg.Managers.AdminID, logger)
		if err := scheduler.Start(cfg.Analytics.ReportCron); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	// Start the admin HTTP API
	if cfg.Admin.Enabled {
		server := api.NewServer(cfg.Admin.HTTPAddr, b.Service(), reporter, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Admin API error", zap.Error(err))
			}
		}()
		defer server.Shutdown(context.Background())
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
