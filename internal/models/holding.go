package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding is an open position in one asset for one profile.
// A holding with quantity zero must not exist; full liquidation deletes the row.
type Holding struct {
	gorm.Model
	ProfileID       uint            `gorm:"uniqueIndex:idx_profile_asset;not null" json:"profile_id"`
	AssetID         uint            `gorm:"uniqueIndex:idx_profile_asset;not null" json:"asset_id"`
	Asset           Asset           `json:"asset"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	AverageBuyPrice decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"average_buy_price"`
}
