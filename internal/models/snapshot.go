package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot is a daily point-in-time valuation of a profile, one row per
// (profile, calendar day). Date is always midnight UTC.
type Snapshot struct {
	gorm.Model
	ProfileID     uint            `gorm:"uniqueIndex:idx_profile_date;not null" json:"profile_id"`
	Date          time.Time       `gorm:"uniqueIndex:idx_profile_date;not null" json:"date"`
	TotalValue    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_value"`
	CashValue     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cash_value"`
	HoldingsValue decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"holdings_value"`
}

// SnapshotDate normalizes t to midnight UTC so the (profile, date) unique
// index collapses all intra-day writes onto one row.
func SnapshotDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
