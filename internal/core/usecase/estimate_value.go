package usecase

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// ValuationMethod tags the heuristic engine version on every emitted
// valuation.
const ValuationMethod = "comps_weighted_median_v1"

// EstimatorConfig tunes the statistical stage of the valuation engine.
type EstimatorConfig struct {
	// MinComparables is the absolute floor below which estimation fails
	// with InsufficientComparablesError.
	MinComparables int

	// MinForTrimming skips the 10-90 percentile trim on samples too small
	// for percentiles to mean anything.
	MinForTrimming int

	TrimLowPct  float64
	TrimHighPct float64

	RangeLowPct  float64
	RangeHighPct float64

	// SizeAdjustmentK models diminishing marginal value of extra size when
	// the subject is larger than the median comparable.
	SizeAdjustmentK float64

	// SampleSizeCap is the n at which the sample-size confidence factor
	// saturates.
	SampleSizeCap int
}

func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MinComparables:  3,
		MinForTrimming:  5,
		TrimLowPct:      10,
		TrimHighPct:     90,
		RangeLowPct:     25,
		RangeHighPct:    75,
		SizeAdjustmentK: 0.05,
		SampleSizeCap:   20,
	}
}

// scopeGeoFactor maps the selector's widening scope to the geographic
// confidence component.
var scopeGeoFactor = map[domain.SelectionScope]float64{
	domain.ScopeColony:       1.0,
	domain.ScopeRadius:       0.85,
	domain.ScopeMunicipality: 0.70,
	domain.ScopeState:        0.50,
}

// EstimateValueUseCase turns a scored comparable set into a point estimate,
// a market range and a confidence score. Side-effect free: the same set
// yields bit-identical output.
type EstimateValueUseCase struct {
	cfg SelectorConfig
	est EstimatorConfig
	now func() time.Time
}

func NewEstimateValueUseCase(selector SelectorConfig, estimator EstimatorConfig) *EstimateValueUseCase {
	return &EstimateValueUseCase{
		cfg: selector,
		est: estimator,
		now: time.Now,
	}
}

type ppuSample struct {
	listingID  int64
	ppu        float64
	area       float64
	similarity float64
}

// Estimate computes the valuation for the subject over the given set.
// Returns *domain.InsufficientComparablesError when fewer than the minimum
// number of usable comparables survive the ppu guard.
func (uc *EstimateValueUseCase) Estimate(set domain.ComparableSet) (*domain.Valuation, error) {
	subject := set.Subject

	samples := make([]ppuSample, 0, len(set.Comparables))
	for _, c := range set.Comparables {
		area := c.Listing.RelevantArea()
		if c.Listing.PriceAmount == nil || area == nil || *area <= 0 {
			continue
		}
		ppu := *c.Listing.PriceAmount / *area
		if !isUsablePPU(ppu) {
			continue
		}
		samples = append(samples, ppuSample{
			listingID:  c.Listing.ID,
			ppu:        ppu,
			area:       *area,
			similarity: c.Similarity,
		})
	}

	if len(samples) < uc.est.MinComparables {
		return nil, &domain.InsufficientComparablesError{
			Found:   len(samples),
			Minimum: uc.est.MinComparables,
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].ppu != samples[j].ppu {
			return samples[i].ppu < samples[j].ppu
		}
		return samples[i].listingID < samples[j].listingID
	})

	trimmed, trimmedOut := uc.trim(samples)

	ppuBase := weightedMedian(trimmed)
	medianArea := medianOf(areasOf(trimmed))

	ppuAdjusted := ppuBase
	var adjustments []domain.Adjustment
	if subject.AreaM2 > medianArea && medianArea > 0 {
		factor := 1 - uc.est.SizeAdjustmentK*(subject.AreaM2/medianArea-1)
		if factor < 0 {
			factor = 0
		}
		ppuAdjusted = ppuBase * factor
		adjustments = append(adjustments, domain.Adjustment{Name: "size", Factor: factor})
	}

	value := ppuAdjusted * subject.AreaM2
	ppus := ppusOf(trimmed)
	low := percentile(ppus, uc.est.RangeLowPct) * subject.AreaM2
	high := percentile(ppus, uc.est.RangeHighPct) * subject.AreaM2

	rangeClamped := false
	if low > value {
		low = value
		rangeClamped = true
	}
	if high < value {
		high = value
		rangeClamped = true
	}

	factors := uc.confidenceFactors(subject, set.Scope, ppus, len(trimmed))
	confidence := 100 * factors.SampleSize * factors.GeoPrecision * factors.Dispersion * factors.Completeness

	comparables := make([]domain.ValuationComparable, 0, len(trimmed))
	for _, s := range trimmed {
		adjusted := s.ppu
		compAdjustments := []domain.Adjustment{}
		if len(adjustments) > 0 {
			adjusted = s.ppu * adjustments[0].Factor
			compAdjustments = adjustments
		}
		comparables = append(comparables, domain.ValuationComparable{
			ListingID:   s.listingID,
			PPURaw:      s.ppu,
			PPUAdjusted: adjusted,
			Similarity:  s.similarity,
			Adjustments: compAdjustments,
		})
	}

	return &domain.Valuation{
		ID:              uuid.New(),
		Subject:         subject,
		EstimatedValue:  value,
		EstimatedLow:    low,
		EstimatedHigh:   high,
		ConfidenceScore: confidence,
		Method:          ValuationMethod,
		Comparables:     comparables,
		Trace: domain.ValuationTrace{
			SampleSize:     len(trimmed),
			TrimmedOut:     trimmedOut,
			PPUBase:        ppuBase,
			PPUAdjusted:    ppuAdjusted,
			MedianCompArea: medianArea,
			Scope:          set.Scope,
			Weights: map[string]float64{
				"distance": uc.cfg.WeightDistance,
				"area":     uc.cfg.WeightArea,
				"rooms":    uc.cfg.WeightRooms,
				"age":      uc.cfg.WeightAge,
			},
			Factors:      factors,
			RangeClamped: rangeClamped,
		},
		CreatedAt: uc.now(),
	}, nil
}

// trim drops ppu values outside the configured percentile band. Skipped on
// samples too small for percentiles to separate noise from signal, and it
// never trims below the minimum comparable count.
func (uc *EstimateValueUseCase) trim(samples []ppuSample) ([]ppuSample, int) {
	if len(samples) < uc.est.MinForTrimming {
		return samples, 0
	}
	ppus := ppusOf(samples)
	low := percentile(ppus, uc.est.TrimLowPct)
	high := percentile(ppus, uc.est.TrimHighPct)

	kept := make([]ppuSample, 0, len(samples))
	for _, s := range samples {
		if s.ppu >= low && s.ppu <= high {
			kept = append(kept, s)
		}
	}
	if len(kept) < uc.est.MinComparables {
		return samples, 0
	}
	return kept, len(samples) - len(kept)
}

func (uc *EstimateValueUseCase) confidenceFactors(subject domain.Subject, scope domain.SelectionScope, ppus []float64, n int) domain.ConfidenceFactors {
	sampleSize := math.Min(1, float64(n)/float64(uc.est.SampleSizeCap))

	geo, ok := scopeGeoFactor[scope]
	if !ok {
		geo = scopeGeoFactor[domain.ScopeState]
	}

	mean, stddev := meanStddev(ppus)
	dispersion := 1.0
	if mean > 0 {
		dispersion = 1 - clamp01(stddev/mean)
	}

	present := 0
	if subject.Lat != nil && subject.Lng != nil {
		present++
	}
	if subject.AreaM2 > 0 {
		present++
	}
	if subject.Bedrooms != nil {
		present++
	}
	if subject.AgeYears != nil {
		present++
	}
	completeness := float64(present) / 4

	return domain.ConfidenceFactors{
		SampleSize:   sampleSize,
		GeoPrecision: geo,
		Dispersion:   dispersion,
		Completeness: completeness,
	}
}

func isUsablePPU(ppu float64) bool {
	return !math.IsNaN(ppu) && !math.IsInf(ppu, 0) && ppu > 0
}

// weightedMedian returns the ppu at which cumulative similarity weight
// first reaches half of the total, over the ascending-ppu sample. Exactly
// at the midpoint the lower value wins. Zero-weight degenerate sets fall
// back to the unweighted median.
func weightedMedian(samples []ppuSample) float64 {
	var total float64
	for _, s := range samples {
		total += s.similarity
	}
	if total <= 0 {
		return medianOf(ppusOf(samples))
	}
	half := total / 2
	var cum float64
	for _, s := range samples {
		cum += s.similarity
		if cum >= half {
			return s.ppu
		}
	}
	return samples[len(samples)-1].ppu
}

// percentile computes the p-th percentile with linear interpolation over
// the sorted sample.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func ppusOf(samples []ppuSample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.ppu)
	}
	return out
}

func areasOf(samples []ppuSample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.area)
	}
	return out
}
