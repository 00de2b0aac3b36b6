package port

import (
	"context"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// ValuationStoragePort persists write-once valuations together with their
// comparable join rows.
type ValuationStoragePort interface {
	SaveValuation(ctx context.Context, valuation *domain.Valuation) error
}
