package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

func scoredComp(id int64, area, price, similarity float64) domain.ScoredComparable {
	return domain.ScoredComparable{
		Listing: domain.Listing{
			ID:                 id,
			Status:             domain.StatusActive,
			PriceType:          domain.PriceTypeSale,
			PriceAmount:        &price,
			PropertyType:       "casa",
			AreaConstructionM2: &area,
			Municipality:       "Monterrey",
		},
		Similarity: similarity,
	}
}

func compSet(scope domain.SelectionScope, comps ...domain.ScoredComparable) domain.ComparableSet {
	return domain.ComparableSet{
		Subject:     subjectCumbres(),
		Scope:       scope,
		Comparables: comps,
	}
}

func TestEstimateFailsBelowMinimumComparables(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	zeroArea := scoredComp(3, 0, 2_500_000, 1)
	set := compSet(domain.ScopeColony,
		scoredComp(1, 150, 2_500_000, 1),
		scoredComp(2, 150, 2_400_000, 1),
		zeroArea,
	)

	_, err := uc.Estimate(set)
	require.Error(t, err)

	var insufficient *domain.InsufficientComparablesError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 2, insufficient.Found)
	assert.Equal(t, 3, insufficient.Minimum)
}

func TestEstimateValueSitsInsideRange(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	set := compSet(domain.ScopeColony,
		scoredComp(1, 150, 2_300_000, 0.9),
		scoredComp(2, 150, 2_450_000, 0.95),
		scoredComp(3, 150, 2_500_000, 1),
		scoredComp(4, 150, 2_550_000, 0.9),
		scoredComp(5, 150, 2_700_000, 0.8),
	)

	v, err := uc.Estimate(set)
	require.NoError(t, err)

	assert.Greater(t, v.EstimatedValue, 0.0)
	assert.LessOrEqual(t, v.EstimatedLow, v.EstimatedValue)
	assert.GreaterOrEqual(t, v.EstimatedValue, v.EstimatedLow)
	assert.LessOrEqual(t, v.EstimatedValue, v.EstimatedHigh)
	assert.Equal(t, "comps_weighted_median_v1", v.Method)
	assert.Equal(t, domain.ScopeColony, v.Trace.Scope)
	assert.Len(t, v.Comparables, v.Trace.SampleSize)
}

func TestEstimateTrimsOutliersOnLargeSamples(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	// Four clustered comparables plus one absurdly cheap and one absurdly
	// expensive. Both tails fall outside the 10-90 band.
	set := compSet(domain.ScopeColony,
		scoredComp(1, 150, 150_000, 1),   // ppu 1,000
		scoredComp(2, 150, 1_500_000, 1), // ppu 10,000
		scoredComp(3, 150, 1_500_000, 1),
		scoredComp(4, 150, 1_500_000, 1),
		scoredComp(5, 150, 1_500_000, 1),
		scoredComp(6, 150, 3_000_000, 1), // ppu 20,000
	)

	v, err := uc.Estimate(set)
	require.NoError(t, err)

	assert.Equal(t, 2, v.Trace.TrimmedOut)
	assert.Equal(t, 4, v.Trace.SampleSize)
	assert.InDelta(t, 10_000.0, v.Trace.PPUBase, 0.001)
	assert.InDelta(t, 1_500_000.0, v.EstimatedValue, 0.001)
}

func TestEstimateSkipsTrimmingOnSmallSamples(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	set := compSet(domain.ScopeColony,
		scoredComp(1, 150, 150_000, 1),
		scoredComp(2, 150, 1_500_000, 1),
		scoredComp(3, 150, 3_000_000, 1),
	)

	v, err := uc.Estimate(set)
	require.NoError(t, err)

	assert.Equal(t, 0, v.Trace.TrimmedOut)
	assert.Equal(t, 3, v.Trace.SampleSize)
}

func TestEstimateDiscountsOversizedSubject(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	subject := subjectCumbres()
	subject.AreaM2 = 200

	// All comparables at 100 m2 and ppu 10,000. The subject is twice the
	// median area, so the per-unit price is discounted by the size factor.
	set := domain.ComparableSet{
		Subject: subject,
		Scope:   domain.ScopeColony,
		Comparables: []domain.ScoredComparable{
			scoredComp(1, 100, 1_000_000, 1),
			scoredComp(2, 100, 1_000_000, 1),
			scoredComp(3, 100, 1_000_000, 1),
		},
	}

	v, err := uc.Estimate(set)
	require.NoError(t, err)

	// factor = 1 - 0.05 * (200/100 - 1) = 0.95
	assert.InDelta(t, 9_500.0, v.Trace.PPUAdjusted, 0.001)
	assert.InDelta(t, 1_900_000.0, v.EstimatedValue, 0.001)

	// The discounted value falls below the undiscounted quartile band, so
	// the band clamps down to include it.
	assert.True(t, v.Trace.RangeClamped)
	assert.InDelta(t, v.EstimatedValue, v.EstimatedLow, 0.001)

	require.Len(t, v.Comparables, 3)
	require.Len(t, v.Comparables[0].Adjustments, 1)
	assert.Equal(t, "size", v.Comparables[0].Adjustments[0].Name)
	assert.InDelta(t, 0.95, v.Comparables[0].Adjustments[0].Factor, 0.0001)
}

func TestEstimateIsDeterministicAcrossRuns(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	set := compSet(domain.ScopeRadius,
		scoredComp(1, 140, 2_300_000, 0.9),
		scoredComp(2, 150, 2_450_000, 0.7),
		scoredComp(3, 160, 2_500_000, 1),
		scoredComp(4, 155, 2_550_000, 0.85),
	)

	first, err := uc.Estimate(set)
	require.NoError(t, err)
	second, err := uc.Estimate(set)
	require.NoError(t, err)

	assert.Equal(t, first.EstimatedValue, second.EstimatedValue)
	assert.Equal(t, first.EstimatedLow, second.EstimatedLow)
	assert.Equal(t, first.EstimatedHigh, second.EstimatedHigh)
	assert.Equal(t, first.ConfidenceScore, second.ConfidenceScore)
	assert.Equal(t, first.Trace, second.Trace)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEstimateConfidenceDegradesWithWiderScope(t *testing.T) {
	uc := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())

	comps := []domain.ScoredComparable{
		scoredComp(1, 150, 2_300_000, 0.9),
		scoredComp(2, 150, 2_450_000, 0.95),
		scoredComp(3, 150, 2_500_000, 1),
		scoredComp(4, 150, 2_550_000, 0.9),
	}

	colony, err := uc.Estimate(compSet(domain.ScopeColony, comps...))
	require.NoError(t, err)
	municipality, err := uc.Estimate(compSet(domain.ScopeMunicipality, comps...))
	require.NoError(t, err)

	assert.Greater(t, colony.ConfidenceScore, municipality.ConfidenceScore)
	assert.InDelta(t, colony.ConfidenceScore*0.70, municipality.ConfidenceScore, 0.0001)
}

func TestClusteredColonyPoolOutscoresDispersedMunicipalityPool(t *testing.T) {
	selector := NewSelectComparablesUseCase(DefaultSelectorConfig())
	estimator := NewEstimateValueUseCase(DefaultSelectorConfig(), DefaultEstimatorConfig())
	subject := subjectCumbres()

	// Ten same-colony comparables, 140-160 m2, tightly clustered around
	// 20,000 MXN/m2.
	areas := []float64{140, 142, 144, 146, 148, 152, 154, 156, 158, 160}
	ppus := []float64{19_500, 19_600, 19_700, 19_800, 19_900, 20_100, 20_200, 20_300, 20_400, 20_500}
	clustered := make([]domain.Listing, 0, len(areas))
	for i := range areas {
		clustered = append(clustered, poolListing(int64(i+1), "Cumbres", areas[i], areas[i]*ppus[i]))
	}

	clusteredSet := selector.Select(subject, clustered)
	require.Equal(t, domain.ScopeColony, clusteredSet.Scope)
	clusteredVal, err := estimator.Estimate(clusteredSet)
	require.NoError(t, err)

	// The estimate stays inside the pool's per-unit price range scaled to
	// the subject's area.
	assert.GreaterOrEqual(t, clusteredVal.EstimatedValue, 19_500.0*subject.AreaM2)
	assert.LessOrEqual(t, clusteredVal.EstimatedValue, 20_500.0*subject.AreaM2)
	assert.LessOrEqual(t, clusteredVal.EstimatedLow, clusteredVal.EstimatedValue)
	assert.LessOrEqual(t, clusteredVal.EstimatedValue, clusteredVal.EstimatedHigh)

	// Three comparables scattered across the municipality with wildly
	// different per-unit prices.
	dispersed := []domain.Listing{
		poolListing(21, "Independencia", 110, 110*6_000),
		poolListing(22, "Contry", 150, 150*20_000),
		poolListing(23, "Del Valle", 190, 190*55_000),
	}

	dispersedSet := selector.Select(subject, dispersed)
	require.Equal(t, domain.ScopeMunicipality, dispersedSet.Scope)
	dispersedVal, err := estimator.Estimate(dispersedSet)
	require.NoError(t, err)

	// More samples, tighter dispersion and colony-level geography all push
	// confidence up.
	assert.Greater(t, clusteredVal.ConfidenceScore, dispersedVal.ConfidenceScore)
	assert.Greater(t, clusteredVal.Trace.Factors.Dispersion, dispersedVal.Trace.Factors.Dispersion)
	assert.Greater(t, clusteredVal.Trace.Factors.SampleSize, dispersedVal.Trace.Factors.SampleSize)
	assert.Greater(t, clusteredVal.Trace.Factors.GeoPrecision, dispersedVal.Trace.Factors.GeoPrecision)
}

func TestWeightedMedianPrefersLowerValueAtMidpoint(t *testing.T) {
	samples := []ppuSample{
		{listingID: 1, ppu: 9_000, similarity: 1},
		{listingID: 2, ppu: 11_000, similarity: 1},
	}
	assert.Equal(t, 9_000.0, weightedMedian(samples))
}

func TestWeightedMedianZeroWeightsFallBackToPlainMedian(t *testing.T) {
	samples := []ppuSample{
		{listingID: 1, ppu: 8_000},
		{listingID: 2, ppu: 10_000},
		{listingID: 3, ppu: 14_000},
	}
	assert.Equal(t, 10_000.0, weightedMedian(samples))
}

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	assert.Equal(t, 10.0, percentile(sorted, 0))
	assert.Equal(t, 25.0, percentile(sorted, 50))
	assert.Equal(t, 40.0, percentile(sorted, 100))
	assert.InDelta(t, 17.5, percentile(sorted, 25), 0.0001)
}
