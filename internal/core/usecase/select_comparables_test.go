package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

func poolListing(id int64, colony string, area, price float64) domain.Listing {
	return domain.Listing{
		ID:                 id,
		SourceCode:         "casas365",
		Status:             domain.StatusActive,
		PriceType:          domain.PriceTypeSale,
		PriceAmount:        &price,
		PropertyType:       "casa",
		AreaConstructionM2: &area,
		Colony:             colony,
		Municipality:       "Monterrey",
		SeenLastAt:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func subjectCumbres() domain.Subject {
	return domain.Subject{
		Municipality: "Monterrey",
		Colony:       "Cumbres",
		PropertyType: "casa",
		PriceType:    domain.PriceTypeSale,
		AreaM2:       150,
	}
}

func TestSelectFiltersInactiveAndWrongPriceType(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	sold := poolListing(1, "Cumbres", 150, 2_500_000)
	sold.Status = domain.StatusSold
	rent := poolListing(2, "Cumbres", 150, 18_000)
	rent.PriceType = domain.PriceTypeRent
	keep := poolListing(3, "Cumbres", 150, 2_500_000)

	set := uc.Select(subjectCumbres(), []domain.Listing{sold, rent, keep})

	require.Len(t, set.Comparables, 1)
	assert.Equal(t, int64(3), set.Comparables[0].Listing.ID)
}

func TestSelectEnforcesAreaBand(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	tooSmall := poolListing(1, "Cumbres", 100, 1_600_000) // below 0.7x of 150
	tooBig := poolListing(2, "Cumbres", 200, 3_400_000)   // above 1.3x of 150
	inBand := poolListing(3, "Cumbres", 160, 2_700_000)

	set := uc.Select(subjectCumbres(), []domain.Listing{tooSmall, tooBig, inBand})

	require.Len(t, set.Comparables, 1)
	assert.Equal(t, int64(3), set.Comparables[0].Listing.ID)
}

func TestSelectAcceptsCompatiblePropertyTypes(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	townhouse := poolListing(1, "Cumbres", 150, 2_500_000)
	townhouse.PropertyType = "townhouse"
	depto := poolListing(2, "Cumbres", 150, 2_500_000)
	depto.PropertyType = "departamento"

	set := uc.Select(subjectCumbres(), []domain.Listing{townhouse, depto})

	require.Len(t, set.Comparables, 1)
	assert.Equal(t, int64(1), set.Comparables[0].Listing.ID)
}

func TestSelectPrefersColonyScopeWhenDeepEnough(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	var pool []domain.Listing
	for i := int64(1); i <= 5; i++ {
		pool = append(pool, poolListing(i, "Cumbres", 150, 2_500_000))
	}
	pool = append(pool, poolListing(6, "Contry", 150, 2_500_000))

	set := uc.Select(subjectCumbres(), pool)

	assert.Equal(t, domain.ScopeColony, set.Scope)
	assert.Len(t, set.Comparables, 5)
	for _, c := range set.Comparables {
		assert.Equal(t, "Cumbres", c.Listing.Colony)
	}
}

func TestSelectWidensToMunicipalityWhenColonyTooThin(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	pool := []domain.Listing{
		poolListing(1, "Cumbres", 150, 2_500_000),
		poolListing(2, "Contry", 150, 2_500_000),
		poolListing(3, "Del Valle", 150, 2_500_000),
	}

	set := uc.Select(subjectCumbres(), pool)

	assert.Equal(t, domain.ScopeMunicipality, set.Scope)
	assert.Len(t, set.Comparables, 3)
}

func TestSelectWidensToRadiusWithCoordinates(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	subject := subjectCumbres()
	lat, lng := 25.6866, -100.3161 // Monterrey centro
	subject.Lat, subject.Lng = &lat, &lng

	var pool []domain.Listing
	for i := int64(1); i <= 5; i++ {
		l := poolListing(i, fmt.Sprintf("Colonia %d", i), 150, 2_500_000)
		nearLat, nearLng := lat+float64(i)*0.001, lng+float64(i)*0.001
		l.Lat, l.Lng = &nearLat, &nearLng
		pool = append(pool, l)
	}
	// One candidate in the same municipality but far outside the radius.
	far := poolListing(9, "Lejana", 150, 2_500_000)
	farLat, farLng := 26.9, -101.5
	far.Lat, far.Lng = &farLat, &farLng
	pool = append(pool, far)

	set := uc.Select(subject, pool)

	assert.Equal(t, domain.ScopeRadius, set.Scope)
	assert.Len(t, set.Comparables, 5)
}

func TestSelectOrderingIsDeterministic(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	// Same similarity and recency; the ID breaks the tie.
	pool := []domain.Listing{
		poolListing(4, "Cumbres", 150, 2_500_000),
		poolListing(2, "Cumbres", 150, 2_500_000),
		poolListing(9, "Cumbres", 150, 2_500_000),
		poolListing(1, "Cumbres", 150, 2_500_000),
		poolListing(7, "Cumbres", 150, 2_500_000),
	}

	first := uc.Select(subjectCumbres(), pool)
	second := uc.Select(subjectCumbres(), pool)

	require.Equal(t, len(first.Comparables), len(second.Comparables))
	var ids []int64
	for i := range first.Comparables {
		assert.Equal(t, first.Comparables[i].Listing.ID, second.Comparables[i].Listing.ID)
		ids = append(ids, first.Comparables[i].Listing.ID)
	}
	assert.Equal(t, []int64{1, 2, 4, 7, 9}, ids)
}

func TestScoreRenormalizesOverPresentFactors(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	subject := subjectCumbres()
	bedrooms := 3
	subject.Bedrooms = &bedrooms

	exact := poolListing(1, "Cumbres", 150, 2_500_000)
	exactBeds := 3
	exact.Bedrooms = &exactBeds

	offByTwo := poolListing(2, "Cumbres", 150, 2_500_000)
	offBeds := 5
	offByTwo.Bedrooms = &offBeds

	set := uc.Select(subject, []domain.Listing{offByTwo, exact})

	require.Len(t, set.Comparables, 2)
	assert.Equal(t, int64(1), set.Comparables[0].Listing.ID)
	assert.Greater(t, set.Comparables[0].Similarity, set.Comparables[1].Similarity)
}

func TestScoreWithNoSharedFactorsIsNeutral(t *testing.T) {
	uc := NewSelectComparablesUseCase(DefaultSelectorConfig())

	// Land subject with land-only candidates: no construction area, no
	// coordinates, no rooms, no age on either side.
	subject := domain.Subject{
		Municipality: "Monterrey",
		PropertyType: "terreno",
		PriceType:    domain.PriceTypeSale,
		AreaM2:       0,
	}
	land := 300.0
	price := 1_200_000.0
	candidate := domain.Listing{
		ID:           1,
		Status:       domain.StatusActive,
		PriceType:    domain.PriceTypeSale,
		PriceAmount:  &price,
		PropertyType: "terreno",
		AreaLandM2:   &land,
		Municipality: "Monterrey",
	}

	set := uc.Select(subject, []domain.Listing{candidate})

	require.Len(t, set.Comparables, 1)
	assert.Equal(t, 0.5, set.Comparables[0].Similarity)
}
