package models

import "gorm.io/gorm"

// Asset type constants.
const (
	AssetTypeStock  = "stock"
	AssetTypeETF    = "etf"
	AssetTypeCrypto = "crypto"
)

// Asset is reference data for a tradable instrument.
// Rows are seeded at startup and read-only from the trading core's perspective.
type Asset struct {
	gorm.Model
	Symbol   string `gorm:"uniqueIndex;not null" json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Type     string `json:"type"` // stock, etf or crypto
	LogoURL  string `json:"logo_url,omitempty"`
}
