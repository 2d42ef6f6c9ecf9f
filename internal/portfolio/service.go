package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"papertrade/internal/models"
	"papertrade/internal/quotes"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the virtual portfolio ledger. It applies BUY/SELL operations to
// a profile's cash balance and holdings, queues orders submitted while the
// market is closed, and records daily valuation snapshots.
type Service struct {
	db              *gorm.DB
	quotes          quotes.Provider
	logger          *zap.Logger
	startingBalance decimal.Decimal
	locks           profileLocks
}

// NewService creates a new portfolio service.
func NewService(db *gorm.DB, quoteProvider quotes.Provider, logger *zap.Logger, startingBalance decimal.Decimal) *Service {
	return &Service{
		db:              db,
		quotes:          quoteProvider,
		logger:          logger.Named("portfolio"),
		startingBalance: startingBalance,
	}
}

// InitializeProfile returns the profile for userID, creating it with the
// starting balance on first use. Idempotent.
func (s *Service) InitializeProfile(userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	profile := models.Profile{UserID: userID, CashBalance: s.startingBalance}
	if err := s.db.FirstOrCreate(&profile, models.Profile{UserID: userID}).Error; err != nil {
		return nil, fmt.Errorf("failed to initialize profile: %w", err)
	}
	return &profile, nil
}

// ResetProfile deletes all holdings, transactions, watchlist entries and
// snapshots for the profile and restores the starting cash balance.
func (s *Service) ResetProfile(userID string) (*models.Profile, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Holding{},
			&models.Transaction{},
			&models.WatchlistItem{},
			&models.Snapshot{},
		} {
			if err := tx.Unscoped().Where("profile_id = ?", profile.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		profile.CashBalance = s.startingBalance
		return tx.Model(profile).Update("cash_balance", s.startingBalance).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset profile: %w", err)
	}

	s.logger.Info("Profile reset", zap.String("user_id", userID))
	return profile, nil
}

// ExecuteTrade applies a single BUY or SELL for userID against assetID.
//
// When the market is closed the order is persisted as pending after a cash
// check for BUYs; no balance or holding changes until the order is replayed.
// When the market is open the trade settles atomically: cash, holding,
// transaction record and today's snapshot all change in one database
// transaction or not at all.
func (s *Service) ExecuteTrade(ctx context.Context, userID string, assetID uint, tradeType string, quantity, pricePerUnit decimal.Decimal, marketOpen bool) (*models.Transaction, error) {
	if err := validateTrade(tradeType, quantity, pricePerUnit); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

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

	if !marketOpen {
		return s.queuePending(profile, &asset, tradeType, quantity, pricePerUnit)
	}

	record, err := s.settle(profile, &asset, tradeType, quantity, pricePerUnit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trade executed",
		zap.String("user_id", userID),
		zap.String("symbol", asset.Symbol),
		zap.String("type", tradeType),
		zap.String("quantity", quantity.String()),
		zap.String("price", pricePerUnit.String()),
	)
	return record, nil
}

// queuePending persists a pending transaction for a closed market. A BUY is
// checked against the cash balance at submission time; the real settlement
// check happens again at replay.
func (s *Service) queuePending(profile *models.Profile, asset *models.Asset, tradeType string, quantity, pricePerUnit decimal.Decimal) (*models.Transaction, error) {
	if tradeType == models.TradeTypeBuy {
		cost := quantity.Mul(pricePerUnit)
		if cost.GreaterThan(profile.CashBalance) {
			return nil, fmt.Errorf("%w: cost %s exceeds balance %s", ErrInsufficientFunds, cost, profile.CashBalance)
		}
	}

	record := models.Transaction{
		ProfileID:    profile.ID,
		AssetID:      asset.ID,
		Type:         tradeType,
		Quantity:     quantity,
		PricePerUnit: pricePerUnit,
		Pending:      true,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to queue pending order: %w", err)
	}

	s.logger.Info("Order queued while market closed",
		zap.String("user_id", profile.UserID),
		zap.String("symbol", asset.Symbol),
		zap.String("type", tradeType),
		zap.Uint("order_id", record.ID),
	)
	return &record, nil
}

// settle applies an executed trade in one atomic database transaction:
// one profile update, zero-or-one holding upsert/delete, one transaction
// insert and one snapshot upsert. Any failure rolls back all of them.
// Caller must hold the profile lock.
func (s *Service) settle(profile *models.Profile, asset *models.Asset, tradeType string, quantity, pricePerUnit decimal.Decimal) (*models.Transaction, error) {
	var record models.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		cost := quantity.Mul(pricePerUnit)

		switch tradeType {
		case models.TradeTypeBuy:
			if cost.GreaterThan(profile.CashBalance) {
				return fmt.Errorf("%w: cost %s exceeds balance %s", ErrInsufficientFunds, cost, profile.CashBalance)
			}
			if err := s.applyBuy(tx, profile.ID, asset.ID, quantity, pricePerUnit); err != nil {
				return err
			}
			profile.CashBalance = profile.CashBalance.Sub(cost)

		case models.TradeTypeSell:
			if err := s.applySell(tx, profile.ID, asset.ID, quantity); err != nil {
				return err
			}
			profile.CashBalance = profile.CashBalance.Add(cost)
		}

		if err := tx.Model(&models.Profile{}).Where("id = ?", profile.ID).
			Update("cash_balance", profile.CashBalance).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		now := time.Now()
		record = models.Transaction{
			ProfileID:    profile.ID,
			AssetID:      asset.ID,
			Type:         tradeType,
			Quantity:     quantity,
			PricePerUnit: pricePerUnit,
			ExecutedAt:   &now,
			Pending:      false,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		return s.snapshotAtTradePrice(tx, profile, pricePerUnit, now)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// applyBuy creates or grows the holding, recomputing the weighted-average
// buy price: (oldAvg*oldQty + qty*price) / (oldQty+qty).
func (s *Service) applyBuy(tx *gorm.DB, profileID, assetID uint, quantity, pricePerUnit decimal.Decimal) error {
	var holding models.Holding
	err := tx.Where("profile_id = ? AND asset_id = ?", profileID, assetID).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		holding = models.Holding{
			ProfileID:       profileID,
			AssetID:         assetID,
			Quantity:        quantity,
			AverageBuyPrice: pricePerUnit,
		}
		if err := tx.Create(&holding).Error; err != nil {
			return fmt.Errorf("failed to create holding: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load holding: %w", err)
	}

	newQuantity := holding.Quantity.Add(quantity)
	totalCost := holding.AverageBuyPrice.Mul(holding.Quantity).Add(quantity.Mul(pricePerUnit))
	holding.AverageBuyPrice = totalCost.Div(newQuantity)
	holding.Quantity = newQuantity
	if err := tx.Save(&holding).Error; err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return nil
}

// applySell shrinks the holding, deleting the row on exact liquidation.
// The average buy price is untouched on SELL; the cost basis of the
// remaining shares does not change.
func (s *Service) applySell(tx *gorm.DB, profileID, assetID uint, quantity decimal.Decimal) error {
	var holding models.Holding
	err := tx.Where("profile_id = ? AND asset_id = ?", profileID, assetID).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoHoldings
	}
	if err != nil {
		return fmt.Errorf("failed to load holding: %w", err)
	}

	if quantity.GreaterThan(holding.Quantity) {
		return fmt.Errorf("%w: requested %s, held %s", ErrInsufficientQuantity, quantity, holding.Quantity)
	}

	remaining := holding.Quantity.Sub(quantity)
	if remaining.IsZero() {
		if err := tx.Unscoped().Delete(&holding).Error; err != nil {
			return fmt.Errorf("failed to delete emptied holding: %w", err)
		}
		return nil
	}

	holding.Quantity = remaining
	if err := tx.Save(&holding).Error; err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return nil
}

// snapshotAtTradePrice upserts today's snapshot valuing every holding at the
// just-traded price. This mirrors the historical behaviour of the system:
// the trade price stands in for all positions' current price until the next
// explicit snapshot revalues them against live quotes.
func (s *Service) snapshotAtTradePrice(tx *gorm.DB, profile *models.Profile, markPrice decimal.Decimal, at time.Time) error {
	var holdings []models.Holding
	if err := tx.Where("profile_id = ?", profile.ID).Find(&holdings).Error; err != nil {
		return fmt.Errorf("failed to load holdings for snapshot: %w", err)
	}

	holdingsValue := decimal.Zero
	for _, holding := range holdings {
		holdingsValue = holdingsValue.Add(holding.Quantity.Mul(markPrice))
	}

	return upsertSnapshot(tx, profile.ID, models.SnapshotDate(at), profile.CashBalance, holdingsValue)
}

// upsertSnapshot writes the (profile, date) snapshot row, overwriting any
// existing row for the same day.
func upsertSnapshot(tx *gorm.DB, profileID uint, date time.Time, cashValue, holdingsValue decimal.Decimal) error {
	totalValue := cashValue.Add(holdingsValue)

	var snapshot models.Snapshot
	err := tx.Where("profile_id = ? AND date = ?", profileID, date).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		snapshot = models.Snapshot{
			ProfileID:     profileID,
			Date:          date,
			TotalValue:    totalValue,
			CashValue:     cashValue,
			HoldingsValue: holdingsValue,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	updates := map[string]interface{}{
		"total_value":    totalValue,
		"cash_value":     cashValue,
		"holdings_value": holdingsValue,
	}
	if err := tx.Model(&snapshot).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	return nil
}

// profileByUser loads the profile for userID.
func (s *Service) profileByUser(userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: profile for user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// validateTrade rejects malformed trade requests before any persistence.
func validateTrade(tradeType string, quantity, pricePerUnit decimal.Decimal) error {
	if tradeType != models.TradeTypeBuy && tradeType != models.TradeTypeSell {
		return fmt.Errorf("%w: unknown trade type %q", ErrValidation, tradeType)
	}
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if !pricePerUnit.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	return nil
}
