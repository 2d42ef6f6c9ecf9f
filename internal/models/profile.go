package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Profile represents a user's virtual trading account.
// Cash balance must never go negative as a result of a BUY.
type Profile struct {
	gorm.Model
	UserID      string          `gorm:"uniqueIndex;not null" json:"user_id"`
	CashBalance decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cash_balance"`
}
