package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WatchlistItem tracks an asset for a profile, with an optional price alert.
// Independent of the ledger.
type WatchlistItem struct {
	gorm.Model
	ProfileID    uint             `gorm:"uniqueIndex:idx_watch_profile_asset;not null" json:"profile_id"`
	AssetID      uint             `gorm:"uniqueIndex:idx_watch_profile_asset;not null" json:"asset_id"`
	Asset        Asset            `json:"asset"`
	TargetPrice  *decimal.Decimal `gorm:"type:decimal(20,8)" json:"target_price,omitempty"`
	AlertEnabled bool             `gorm:"default:false" json:"alert_enabled"`
}
