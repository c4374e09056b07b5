package main

import (
	"github.com/ikkim/vintage-store-backend/config"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
)

// seed migrates the schema and loads the demo catalog into an empty database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := db.Seed(); err != nil {
		logger.Fatal("Failed to seed database", err)
	}
	logger.Info("Seed completed")
}
