package portfolio

import (
	"errors"
	"fmt"

	"papertrade/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AddToWatchlist adds an asset to the profile's watchlist. Adding an asset
// that is already watched updates its alert settings instead.
func (s *Service) AddToWatchlist(userID string, assetID uint, targetPrice *decimal.Decimal, alertEnabled bool) (*models.WatchlistItem, error) {
	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	var asset models.Asset
	if err := s.db.First(&asset, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: asset %d", ErrNotFound, assetID)
		}
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}

	var item models.WatchlistItem
	err = s.db.Where("profile_id = ? AND asset_id = ?", profile.ID, assetID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		item = models.WatchlistItem{
			ProfileID:    profile.ID,
			AssetID:      assetID,
			TargetPrice:  targetPrice,
			AlertEnabled: alertEnabled,
		}
		if err := s.db.Create(&item).Error; err != nil {
			return nil, fmt.Errorf("failed to add watchlist item: %w", err)
		}
		return &item, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist item: %w", err)
	}

	return s.updateWatchlistItem(&item, targetPrice, alertEnabled)
}

// UpdateWatchlist changes the alert settings of an existing watchlist entry.
func (s *Service) UpdateWatchlist(userID string, assetID uint, targetPrice *decimal.Decimal, alertEnabled bool) (*models.WatchlistItem, error) {
	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	var item models.WatchlistItem
	err = s.db.Where("profile_id = ? AND asset_id = ?", profile.ID, assetID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: watchlist item for asset %d", ErrNotFound, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist item: %w", err)
	}

	return s.updateWatchlistItem(&item, targetPrice, alertEnabled)
}

func (s *Service) updateWatchlistItem(item *models.WatchlistItem, targetPrice *decimal.Decimal, alertEnabled bool) (*models.WatchlistItem, error) {
	updates := map[string]interface{}{
		"target_price":  targetPrice,
		"alert_enabled": alertEnabled,
	}
	if err := s.db.Model(item).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update watchlist item: %w", err)
	}
	item.TargetPrice = targetPrice
	item.AlertEnabled = alertEnabled
	return item, nil
}

// RemoveFromWatchlist deletes a watchlist entry.
func (s *Service) RemoveFromWatchlist(userID string, assetID uint) error {
	profile, err := s.profileByUser(userID)
	if err != nil {
		return err
	}

	result := s.db.Unscoped().
		Where("profile_id = ? AND asset_id = ?", profile.ID, assetID).
		Delete(&models.WatchlistItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove watchlist item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: watchlist item for asset %d", ErrNotFound, assetID)
	}
	return nil
}

// GetWatchlist returns the profile's watchlist entries with their assets.
func (s *Service) GetWatchlist(userID string) ([]models.WatchlistItem, error) {
	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	var items []models.WatchlistItem
	err = s.db.Preload("Asset").
		Where("profile_id = ?", profile.ID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}
	return items, nil
}
