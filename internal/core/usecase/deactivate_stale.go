package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

// DeactivateStaleUseCase flips listings that have not been observed for a
// while from active to inactive. Sources silently drop sold or withdrawn
// publications, so absence over the window is the disappearance signal.
type DeactivateStaleUseCase struct {
	storage   port.ListingStoragePort
	logger    port.LoggerPort
	unseenFor time.Duration
}

func NewDeactivateStaleUseCase(storage port.ListingStoragePort, logger port.LoggerPort, unseenFor time.Duration) *DeactivateStaleUseCase {
	if unseenFor <= 0 {
		unseenFor = 30 * 24 * time.Hour
	}
	return &DeactivateStaleUseCase{
		storage:   storage,
		logger:    logger,
		unseenFor: unseenFor,
	}
}

// Run deactivates everything unseen for the configured window and returns
// the number of listings flipped.
func (uc *DeactivateStaleUseCase) Run(ctx context.Context) (int64, error) {
	count, err := uc.storage.DeactivateStale(ctx, uc.unseenFor)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale listings: %w", err)
	}
	if count > 0 {
		uc.logger.Info("Stale listings deactivated", port.Fields{
			"count":      count,
			"unseen_for": uc.unseenFor.String(),
		})
	}
	return count, nil
}
