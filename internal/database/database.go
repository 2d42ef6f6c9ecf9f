package database

import (
	"fmt"

	"papertrade/internal/config"
	"papertrade/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := SeedAssets(db, cfg.Trading.Assets); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.Asset{},
		&models.Holding{},
		&models.Transaction{},
		&models.WatchlistItem{},
		&models.Snapshot{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SeedAssets populates the assets table from the config. Existing symbols are
// left untouched; symbols are immutable once created.
func SeedAssets(db *gorm.DB, seeds []config.AssetSeed) error {
	for _, seed := range seeds {
		asset := models.Asset{
			Symbol:   seed.Symbol,
			Name:     seed.Name,
			Exchange: seed.Exchange,
			Currency: seed.Currency,
			Type:     seed.Type,
			LogoURL:  seed.LogoURL,
		}
		if err := db.FirstOrCreate(&asset, models.Asset{Symbol: seed.Symbol}).Error; err != nil {
			return fmt.Errorf("failed to seed asset '%s': %w", seed.Symbol, err)
		}
	}
	return nil
}
