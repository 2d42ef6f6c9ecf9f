package portfolio

import (
	"context"
	"fmt"

	"papertrade/internal/market"
	"papertrade/internal/models"

	"go.uber.org/zap"
)

// SweepAllPending replays pending orders for every profile that has at least
// one, provided the market is open. It is invoked once at process startup
// and again on the configured schedule. One profile's failure does not stop
// the sweep for the others.
func (s *Service) SweepAllPending(ctx context.Context, clock market.Clock) error {
	if !clock.IsOpen(clock.Now()) {
		s.logger.Debug("Market closed, skipping pending-order sweep")
		return nil
	}

	var profileIDs []uint
	err := s.db.Model(&models.Transaction{}).
		Where("pending = ?", true).
		Distinct("profile_id").
		Pluck("profile_id", &profileIDs).Error
	if err != nil {
		return fmt.Errorf("failed to enumerate profiles with pending orders: %w", err)
	}
	if len(profileIDs) == 0 {
		return nil
	}

	s.logger.Info("Sweeping pending orders", zap.Int("profiles", len(profileIDs)))

	for _, profileID := range profileIDs {
		var profile models.Profile
		if err := s.db.First(&profile, profileID).Error; err != nil {
			s.logger.Error("Failed to load profile during sweep",
				zap.Uint("profile_id", profileID), zap.Error(err))
			continue
		}

		unlock := s.locks.lock(profile.UserID)
		result, err := s.processPendingForProfile(ctx, &profile)
		unlock()
		if err != nil {
			s.logger.Error("Pending-order sweep failed for profile",
				zap.String("user_id", profile.UserID), zap.Error(err))
			continue
		}

		s.logger.Info("Swept profile",
			zap.String("user_id", profile.UserID),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
		)
	}

	return nil
}
