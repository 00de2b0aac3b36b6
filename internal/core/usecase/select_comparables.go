package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/mmcloughlin/geohash"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// SelectorConfig tunes the comparable filter and scoring stage.
type SelectorConfig struct {
	// MinColonyCandidates is the same-colony count below which the filter
	// widens to a geographic radius or the whole municipality.
	MinColonyCandidates int

	// AreaBandLow/High bound a candidate's construction area relative to
	// the subject's.
	AreaBandLow  float64
	AreaBandHigh float64

	// GeohashPrecision sets the radius cell size for coordinate-based
	// widening. Precision 5 is roughly a 5km x 5km cell.
	GeohashPrecision uint

	// Normalization caps. A difference at or beyond the cap contributes a
	// full 1.0 to its term.
	DistanceCapKm float64
	RoomsCap      float64
	AgeCapYears   float64

	WeightDistance float64
	WeightArea     float64
	WeightRooms    float64
	WeightAge      float64
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		MinColonyCandidates: 5,
		AreaBandLow:         0.7,
		AreaBandHigh:        1.3,
		GeohashPrecision:    5,
		DistanceCapKm:       5,
		RoomsCap:            3,
		AgeCapYears:         30,
		WeightDistance:      0.35,
		WeightArea:          0.30,
		WeightRooms:         0.20,
		WeightAge:           0.15,
	}
}

// propertyTypeGroups collects canonical types that are acceptable
// substitutes for one another when valuing.
var propertyTypeGroups = map[string][]string{
	"casa":         {"casa", "townhouse", "casa en condominio", "duplex"},
	"departamento": {"departamento", "loft", "penthouse"},
	"local":        {"local", "oficina"},
	"oficina":      {"oficina", "local"},
}

func compatibleTypes(propertyType string) map[string]struct{} {
	key := strings.ToLower(strings.TrimSpace(propertyType))
	set := map[string]struct{}{key: {}}
	for _, t := range propertyTypeGroups[key] {
		set[t] = struct{}{}
	}
	return set
}

// SelectComparablesUseCase filters and scores candidate listings against a
// valuation subject. Pure computation over an in-memory pool: deterministic
// for the same subject and pool state, safe to re-run.
type SelectComparablesUseCase struct {
	cfg SelectorConfig
}

func NewSelectComparablesUseCase(cfg SelectorConfig) *SelectComparablesUseCase {
	return &SelectComparablesUseCase{cfg: cfg}
}

// Select applies the hard filters, widens the geographic scope when the
// colony yields too few candidates, scores the survivors and returns them
// ordered by similarity with deterministic tie-breaks.
func (uc *SelectComparablesUseCase) Select(subject domain.Subject, pool []domain.Listing) domain.ComparableSet {
	base := uc.filterHard(subject, pool)

	candidates, scope := uc.narrowGeo(subject, base)

	scored := make([]domain.ScoredComparable, 0, len(candidates))
	for _, l := range candidates {
		scored = append(scored, domain.ScoredComparable{
			Listing:    l,
			Similarity: uc.score(subject, l),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Listing.SeenLastAt.Equal(b.Listing.SeenLastAt) {
			return a.Listing.SeenLastAt.After(b.Listing.SeenLastAt)
		}
		da, db := uc.absPriceDiff(subject, a.Listing), uc.absPriceDiff(subject, b.Listing)
		if da != db {
			return da < db
		}
		return a.Listing.ID < b.Listing.ID
	})

	return domain.ComparableSet{Subject: subject, Scope: scope, Comparables: scored}
}

// filterHard applies every constraint that does not depend on geographic
// scope: status, price type, property type compatibility, municipality,
// area band and the minimum data requirement.
func (uc *SelectComparablesUseCase) filterHard(subject domain.Subject, pool []domain.Listing) []domain.Listing {
	types := compatibleTypes(subject.PropertyType)
	municipality := strings.EqualFold

	out := make([]domain.Listing, 0, len(pool))
	for _, l := range pool {
		if l.Status != domain.StatusActive {
			continue
		}
		if l.PriceType != subject.PriceType {
			continue
		}
		if _, ok := types[strings.ToLower(strings.TrimSpace(l.PropertyType))]; !ok {
			continue
		}
		if !municipality(l.Municipality, subject.Municipality) {
			continue
		}
		area := l.RelevantArea()
		if l.PriceAmount == nil || area == nil || *area <= 0 {
			continue
		}
		if subject.AreaM2 > 0 {
			if *area < subject.AreaM2*uc.cfg.AreaBandLow || *area > subject.AreaM2*uc.cfg.AreaBandHigh {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

// narrowGeo prefers same-colony candidates, widening to a geohash radius
// around the subject's coordinates and finally the whole municipality when
// the colony is too thin. The returned scope tag degrades confidence
// downstream.
func (uc *SelectComparablesUseCase) narrowGeo(subject domain.Subject, candidates []domain.Listing) ([]domain.Listing, domain.SelectionScope) {
	if subject.Colony != "" {
		colony := make([]domain.Listing, 0, len(candidates))
		for _, l := range candidates {
			if strings.EqualFold(l.Colony, subject.Colony) {
				colony = append(colony, l)
			}
		}
		if len(colony) >= uc.cfg.MinColonyCandidates {
			return colony, domain.ScopeColony
		}
	}

	if subject.Lat != nil && subject.Lng != nil {
		cells := radiusCells(*subject.Lat, *subject.Lng, uc.cfg.GeohashPrecision)
		radius := make([]domain.Listing, 0, len(candidates))
		for _, l := range candidates {
			if l.Lat == nil || l.Lng == nil {
				continue
			}
			cell := geohash.EncodeWithPrecision(*l.Lat, *l.Lng, uc.cfg.GeohashPrecision)
			if _, ok := cells[cell]; ok {
				radius = append(radius, l)
			}
		}
		if len(radius) >= uc.cfg.MinColonyCandidates {
			return radius, domain.ScopeRadius
		}
	}

	return candidates, domain.ScopeMunicipality
}

// radiusCells is the subject's geohash cell plus its eight neighbors.
func radiusCells(lat, lng float64, precision uint) map[string]struct{} {
	center := geohash.EncodeWithPrecision(lat, lng, precision)
	cells := map[string]struct{}{center: {}}
	for _, n := range geohash.Neighbors(center) {
		cells[n] = struct{}{}
	}
	return cells
}

// score computes 1 - weighted sum of normalized differences, clamped to
// [0, 1]. Factors without data on either side drop out and the remaining
// weights renormalize, so missing data never silently zeroes a term.
func (uc *SelectComparablesUseCase) score(subject domain.Subject, l domain.Listing) float64 {
	type factor struct {
		weight float64
		norm   float64
	}
	var factors []factor

	if subject.Lat != nil && subject.Lng != nil && l.Lat != nil && l.Lng != nil {
		dist := haversineKm(*subject.Lat, *subject.Lng, *l.Lat, *l.Lng)
		factors = append(factors, factor{uc.cfg.WeightDistance, clamp01(dist / uc.cfg.DistanceCapKm)})
	}
	if subject.AreaM2 > 0 {
		if area := l.RelevantArea(); area != nil {
			factors = append(factors, factor{uc.cfg.WeightArea, clamp01(math.Abs(*area-subject.AreaM2) / subject.AreaM2)})
		}
	}
	if subject.Bedrooms != nil && l.Bedrooms != nil {
		diff := math.Abs(float64(*subject.Bedrooms - *l.Bedrooms))
		factors = append(factors, factor{uc.cfg.WeightRooms, clamp01(diff / uc.cfg.RoomsCap)})
	}
	if subject.AgeYears != nil && l.AgeYears != nil {
		diff := math.Abs(float64(*subject.AgeYears - *l.AgeYears))
		factors = append(factors, factor{uc.cfg.WeightAge, clamp01(diff / uc.cfg.AgeCapYears)})
	}

	if len(factors) == 0 {
		// No shared dimensions to compare on. Neutral midpoint keeps such
		// candidates usable without ranking them above data-rich ones.
		return 0.5
	}

	var totalWeight, penalty float64
	for _, f := range factors {
		totalWeight += f.weight
	}
	for _, f := range factors {
		penalty += (f.weight / totalWeight) * f.norm
	}
	return clamp01(1 - penalty)
}

func (uc *SelectComparablesUseCase) absPriceDiff(subject domain.Subject, l domain.Listing) float64 {
	if l.PriceAmount == nil {
		return math.MaxFloat64
	}
	area := l.RelevantArea()
	if subject.AreaM2 <= 0 || area == nil || *area <= 0 {
		return *l.PriceAmount
	}
	return math.Abs(*l.PriceAmount - (*l.PriceAmount / *area * subject.AreaM2))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
