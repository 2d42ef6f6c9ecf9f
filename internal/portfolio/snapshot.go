package portfolio

import (
	"context"
	"fmt"
	"time"

	"papertrade/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateSnapshot records the profile's valuation for the given day (today
// when at is zero). Each holding is valued at its latest quote, falling back
// to its average buy price when no quote is available. Calling twice on the
// same day overwrites the same row.
func (s *Service) CreateSnapshot(ctx context.Context, userID string, at time.Time) (*models.Snapshot, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	if at.IsZero() {
		at = time.Now()
	}
	date := models.SnapshotDate(at)

	var holdings []models.Holding
	if err := s.db.Preload("Asset").Where("profile_id = ?", profile.ID).Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	symbols := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		symbols = append(symbols, holding.Asset.Symbol)
	}

	priced := map[string]decimal.Decimal{}
	if len(symbols) > 0 {
		batch, err := s.quotes.BatchQuotes(ctx, symbols)
		if err != nil {
			s.logger.Warn("Batch quotes failed for snapshot, using average cost", zap.Error(err))
		}
		for symbol, quote := range batch {
			priced[symbol] = quote.CurrentPrice
		}
	}

	holdingsValue := decimal.Zero
	for _, holding := range holdings {
		price, ok := priced[holding.Asset.Symbol]
		if !ok {
			price = holding.AverageBuyPrice
		}
		holdingsValue = holdingsValue.Add(holding.Quantity.Mul(price))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return upsertSnapshot(tx, profile.ID, date, profile.CashBalance, holdingsValue)
	})
	if err != nil {
		return nil, err
	}

	var snapshot models.Snapshot
	if err := s.db.Where("profile_id = ? AND date = ?", profile.ID, date).First(&snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snapshot, nil
}

// GetSnapshots returns snapshots ordered by date ascending, optionally
// bounded by [from, to].
func (s *Service) GetSnapshots(userID string, from, to *time.Time) ([]models.Snapshot, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, fmt.Errorf("%w: 'from' is after 'to'", ErrValidation)
	}

	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	query := s.db.Where("profile_id = ?", profile.ID).Order("date ASC")
	if from != nil {
		query = query.Where("date >= ?", models.SnapshotDate(*from))
	}
	if to != nil {
		query = query.Where("date <= ?", models.SnapshotDate(*to))
	}

	var snapshots []models.Snapshot
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return snapshots, nil
}
