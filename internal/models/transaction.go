package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade side constants.
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Transaction is an immutable record of an order. While pending, ExecutedAt is
// nil; once executed the row is never mutated again. A cancelled pending order
// is deleted, not retained.
type Transaction struct {
	gorm.Model
	ProfileID    uint            `gorm:"index;not null" json:"profile_id"`
	AssetID      uint            `gorm:"index;not null" json:"asset_id"`
	Asset        Asset           `json:"asset"`
	Type         string          `gorm:"not null" json:"type"` // "BUY" or "SELL"
	Quantity     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	PricePerUnit decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price_per_unit"`
	ExecutedAt   *time.Time      `gorm:"index" json:"executed_at,omitempty"`
	Pending      bool            `gorm:"index;default:false" json:"pending"`
}
