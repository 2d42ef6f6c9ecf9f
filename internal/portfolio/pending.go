package portfolio

import (
	"context"
	"errors"
	"fmt"

	"papertrade/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderResult records the outcome of replaying one pending order.
type OrderResult struct {
	OrderID       uint            `json:"order_id"`
	Symbol        string          `json:"symbol"`
	Executed      bool            `json:"executed"`
	ExecutedPrice decimal.Decimal `json:"executed_price,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// SweepResult summarizes one pending-order processing pass for a profile.
type SweepResult struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Results   []OrderResult `json:"results"`
}

// GetPendingOrders returns the profile's pending orders, most recent first.
func (s *Service) GetPendingOrders(userID string) ([]models.Transaction, error) {
	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	var orders []models.Transaction
	err = s.db.Preload("Asset").
		Where("profile_id = ? AND pending = ?", profile.ID, true).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending orders: %w", err)
	}
	return orders, nil
}

// ProcessPendingOrders replays the profile's pending orders oldest-first at
// fresh quoted prices, discarding the originally requested price. An order
// with no available quote (or a failed settlement) is recorded as failed and
// left pending; the sweep continues with the next order.
func (s *Service) ProcessPendingOrders(ctx context.Context, userID string) (*SweepResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.processPendingForProfile(ctx, profile)
}

// processPendingForProfile does the actual replay. Caller must hold the
// profile lock.
func (s *Service) processPendingForProfile(ctx context.Context, profile *models.Profile) (*SweepResult, error) {
	var orders []models.Transaction
	err := s.db.Preload("Asset").
		Where("profile_id = ? AND pending = ?", profile.ID, true).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending orders: %w", err)
	}

	result := &SweepResult{Results: make([]OrderResult, 0, len(orders))}
	for _, order := range orders {
		outcome := OrderResult{OrderID: order.ID, Symbol: order.Asset.Symbol}

		quote, err := s.quotes.RealtimeQuote(ctx, order.Asset.Symbol)
		if err != nil {
			outcome.Error = fmt.Sprintf("%v: %v", ErrQuoteUnavailable, err)
			result.Failed++
			result.Results = append(result.Results, outcome)
			s.logger.Warn("No quote for pending order, leaving pending",
				zap.Uint("order_id", order.ID),
				zap.String("symbol", order.Asset.Symbol),
				zap.Error(err),
			)
			continue
		}

		// The order executes at the market's current price, not at the
		// price requested when the market was closed.
		record, err := s.settle(profile, &order.Asset, order.Type, order.Quantity, quote.CurrentPrice)
		if err != nil {
			// Reload the profile: a rolled-back settlement must not leave a
			// stale in-memory balance for the remaining orders.
			if fresh, ferr := s.profileByUser(profile.UserID); ferr == nil {
				*profile = *fresh
			}
			outcome.Error = err.Error()
			result.Failed++
			result.Results = append(result.Results, outcome)
			s.logger.Warn("Pending order failed to settle, leaving pending",
				zap.Uint("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.db.Unscoped().Delete(&models.Transaction{}, order.ID).Error; err != nil {
			return result, fmt.Errorf("failed to delete processed pending order %d: %w", order.ID, err)
		}

		outcome.Executed = true
		outcome.ExecutedPrice = quote.CurrentPrice
		result.Processed++
		result.Results = append(result.Results, outcome)
		s.logger.Info("Pending order executed",
			zap.Uint("order_id", order.ID),
			zap.Uint("transaction_id", record.ID),
			zap.String("symbol", order.Asset.Symbol),
			zap.String("price", quote.CurrentPrice.String()),
		)
	}

	return result, nil
}

// CancelPendingOrder deletes a still-pending order after verifying it
// belongs to the caller's profile. Cancelled orders are not retained.
func (s *Service) CancelPendingOrder(userID string, orderID uint) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.profileByUser(userID)
	if err != nil {
		return err
	}

	var order models.Transaction
	err = s.db.Where("id = ? AND profile_id = ? AND pending = ?", orderID, profile.ID, true).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: pending order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to load pending order: %w", err)
	}

	if err := s.db.Unscoped().Delete(&order).Error; err != nil {
		return fmt.Errorf("failed to cancel pending order: %w", err)
	}

	s.logger.Info("Pending order cancelled",
		zap.String("user_id", userID),
		zap.Uint("order_id", orderID),
	)
	return nil
}
