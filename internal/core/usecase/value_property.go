package usecase

import (
	"context"
	"fmt"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

// ValuePropertyUseCase orchestrates one valuation request: fetch the
// candidate pool, select and score comparables, estimate, persist.
type ValuePropertyUseCase struct {
	listings   port.ListingStoragePort
	valuations port.ValuationStoragePort
	selector   *SelectComparablesUseCase
	estimator  *EstimateValueUseCase
	logger     port.LoggerPort
}

func NewValuePropertyUseCase(listings port.ListingStoragePort, valuations port.ValuationStoragePort, selector *SelectComparablesUseCase, estimator *EstimateValueUseCase, logger port.LoggerPort) *ValuePropertyUseCase {
	return &ValuePropertyUseCase{
		listings:   listings,
		valuations: valuations,
		selector:   selector,
		estimator:  estimator,
		logger:     logger,
	}
}

// Value runs the full selection and estimation pipeline for the subject.
// An InsufficientComparablesError is terminal for this request and passes
// through unwrapped so callers can report "cannot value this property".
func (uc *ValuePropertyUseCase) Value(ctx context.Context, subject domain.Subject) (*domain.Valuation, error) {
	if subject.Municipality == "" || subject.PropertyType == "" || subject.AreaM2 <= 0 {
		return nil, fmt.Errorf("subject requires municipality, property_type and a positive area")
	}
	if subject.PriceType == "" {
		subject.PriceType = domain.PriceTypeSale
	}

	pool, err := uc.listings.GetComparablePool(ctx, subject.Municipality, subject.PriceType)
	if err != nil {
		return nil, fmt.Errorf("failed to load comparable pool: %w", err)
	}

	set := uc.selector.Select(subject, pool)
	valuation, err := uc.estimator.Estimate(set)
	if err != nil {
		return nil, err
	}

	if err := uc.valuations.SaveValuation(ctx, valuation); err != nil {
		return nil, fmt.Errorf("failed to save valuation: %w", err)
	}

	uc.logger.Info("Valuation completed", port.Fields{
		"valuation_id": valuation.ID.String(),
		"municipality": subject.Municipality,
		"scope":        string(set.Scope),
		"sample_size":  valuation.Trace.SampleSize,
		"value":        valuation.EstimatedValue,
		"confidence":   valuation.ConfidenceScore,
	})
	return valuation, nil
}
