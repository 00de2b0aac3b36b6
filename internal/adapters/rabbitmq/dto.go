package rabbitmq

import (
	"encoding/json"
	"time"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// RawListingEventDTO is the wire shape of one scraped portal record. The
// record payload stays opaque here; the source mappers own its field names.
type RawListingEventDTO struct {
	SourceCode string          `json:"source_code"`
	Record     json.RawMessage `json:"record"`
}

// SubjectDTO is the wire shape of a property to be valued.
type SubjectDTO struct {
	Municipality string   `json:"municipality"`
	Colony       string   `json:"colony,omitempty"`
	PropertyType string   `json:"property_type"`
	PriceType    string   `json:"price_type,omitempty"`
	AreaM2       float64  `json:"area_m2"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	Parking      *int     `json:"parking,omitempty"`
	AgeYears     *int     `json:"age_years,omitempty"`
}

// ValuationRequestEventDTO asks for one estimate and names the request so
// the answer can be correlated.
type ValuationRequestEventDTO struct {
	RequestID string     `json:"request_id"`
	Subject   SubjectDTO `json:"subject"`
}

// ValuationResultEventDTO is the outbound answer. Exactly one of Valuation
// or FailureReason is set.
type ValuationResultEventDTO struct {
	RequestID     string        `json:"request_id"`
	Status        string        `json:"status"` // "ok" or "failed"
	FailureReason string        `json:"failure_reason,omitempty"`
	Valuation     *ValuationDTO `json:"valuation,omitempty"`
}

type ValuationDTO struct {
	ValuationID     string                       `json:"valuation_id"`
	EstimatedValue  float64                      `json:"estimated_value"`
	EstimatedLow    float64                      `json:"estimated_low"`
	EstimatedHigh   float64                      `json:"estimated_high"`
	ConfidenceScore float64                      `json:"confidence_score"`
	Method          string                       `json:"method"`
	Scope           string                       `json:"scope"`
	SampleSize      int                          `json:"sample_size"`
	Comparables     []domain.ValuationComparable `json:"comparables"`
	CreatedAt       string                       `json:"created_at"`
}

func toSubjectDomain(dto SubjectDTO) domain.Subject {
	return domain.Subject{
		Municipality: dto.Municipality,
		Colony:       dto.Colony,
		PropertyType: dto.PropertyType,
		PriceType:    domain.PriceType(dto.PriceType),
		AreaM2:       dto.AreaM2,
		Lat:          dto.Lat,
		Lng:          dto.Lng,
		Bedrooms:     dto.Bedrooms,
		Bathrooms:    dto.Bathrooms,
		Parking:      dto.Parking,
		AgeYears:     dto.AgeYears,
	}
}

func toValuationDTO(v *domain.Valuation) *ValuationDTO {
	return &ValuationDTO{
		ValuationID:     v.ID.String(),
		EstimatedValue:  v.EstimatedValue,
		EstimatedLow:    v.EstimatedLow,
		EstimatedHigh:   v.EstimatedHigh,
		ConfidenceScore: v.ConfidenceScore,
		Method:          v.Method,
		Scope:           string(v.Trace.Scope),
		SampleSize:      v.Trace.SampleSize,
		Comparables:     v.Comparables,
		CreatedAt:       v.CreatedAt.UTC().Format(time.RFC3339),
	}
}
