package port

import (
	"context"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// ValuationResultQueuePort publishes valuation outcomes back to whatever
// serving layer asked for them.
type ValuationResultQueuePort interface {
	PublishResult(ctx context.Context, requestID string, valuation *domain.Valuation) error
	PublishFailure(ctx context.Context, requestID string, reason string) error
	Close() error
}
