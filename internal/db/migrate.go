package db

import (
	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.CartItem{},
		&model.ReleaseJob{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed inserts a few demo garments when the catalog is empty (development only)
func Seed() error {
	return seedProducts(DB)
}

func seedProducts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Products already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	products := []model.Product{
		{Name: "Campera de jean 90s", Price: decimal.NewFromInt(18500), Stock: 1, State: model.StateAvailable},
		{Name: "Vestido floral 70s", Price: decimal.NewFromInt(22000), Stock: 1, State: model.StateAvailable},
		{Name: "Blazer de lana vintage", Price: decimal.NewFromInt(27500), Stock: 1, State: model.StateAvailable},
	}
	if err := db.Create(&products).Error; err != nil {
		return err
	}

	logger.Info("Demo products seeded", map[string]interface{}{
		"count": len(products),
	})
	return nil
}
