package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// ValuationStorageAdapter persists write-once valuations and their
// comparable links.
type ValuationStorageAdapter struct {
	pool *pgxpool.Pool
}

func NewValuationStorageAdapter(pool *pgxpool.Pool) (*ValuationStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &ValuationStorageAdapter{pool: pool}, nil
}

// SaveValuation writes the valuation row and its comparable join rows in
// one transaction.
func (a *ValuationStorageAdapter) SaveValuation(ctx context.Context, v *domain.Valuation) error {
	subjectJSON, err := json.Marshal(subjectSnapshot(v.Subject))
	if err != nil {
		return fmt.Errorf("failed to encode subject snapshot: %w", err)
	}
	traceJSON, err := json.Marshal(v.Trace)
	if err != nil {
		return fmt.Errorf("failed to encode valuation trace: %w", err)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO valuations (
			id, subject_json, estimated_value, estimated_low, estimated_high,
			confidence_score, method, trace_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`,
		v.ID, subjectJSON, v.EstimatedValue, v.EstimatedLow, v.EstimatedHigh,
		v.ConfidenceScore, v.Method, traceJSON, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert valuation: %w", err)
	}

	for _, c := range v.Comparables {
		adjustments, err := json.Marshal(c.Adjustments)
		if err != nil {
			return fmt.Errorf("failed to encode adjustments: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO valuation_comparables (
				valuation_id, listing_id, ppu_raw, ppu_adjusted, similarity_score, adjustments_json
			) VALUES ($1, $2, $3, $4, $5, $6);
		`, v.ID, c.ListingID, c.PPURaw, c.PPUAdjusted, c.Similarity, adjustments)
		if err != nil {
			return fmt.Errorf("failed to insert valuation comparable: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// subjectSnapshot flattens the subject into the persisted input snapshot.
func subjectSnapshot(s domain.Subject) map[string]any {
	snap := map[string]any{
		"municipality":  s.Municipality,
		"property_type": s.PropertyType,
		"price_type":    string(s.PriceType),
		"area_m2":       s.AreaM2,
	}
	if s.Colony != "" {
		snap["colony"] = s.Colony
	}
	if s.Lat != nil {
		snap["lat"] = *s.Lat
	}
	if s.Lng != nil {
		snap["lng"] = *s.Lng
	}
	if s.Bedrooms != nil {
		snap["bedrooms"] = *s.Bedrooms
	}
	if s.Bathrooms != nil {
		snap["bathrooms"] = *s.Bathrooms
	}
	if s.Parking != nil {
		snap["parking"] = *s.Parking
	}
	if s.AgeYears != nil {
		snap["age_years"] = *s.AgeYears
	}
	return snap
}
