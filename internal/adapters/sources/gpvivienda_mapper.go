package sources

import (
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/normalize"
)

// GPViviendaMapper translates gpvivienda portal records. The portal only
// publishes new-build houses for sale, so status, price type and property
// type are fixed rather than inferred.
type GPViviendaMapper struct{}

func NewGPViviendaMapper() *GPViviendaMapper { return &GPViviendaMapper{} }

func (m *GPViviendaMapper) SourceCode() string { return "gpvivienda" }
func (m *GPViviendaMapper) SourceName() string { return "GP Vivienda" }
func (m *GPViviendaMapper) BaseURL() string    { return "https://www.gpvivienda.com" }

func (m *GPViviendaMapper) Map(raw domain.RawRecord) (*domain.Listing, error) {
	url := normalize.String(raw["url"])
	title := normalize.String(raw["titulo"])
	if title == "" {
		title = normalize.String(raw["modelo"])
	}
	description := normalize.String(raw["descripcion"])

	details := map[string]any{}
	for key, field := range map[string]string{
		"modelo":       "modelo",
		"precio_texto": "precio_texto",
		"plano_url":    "plano_url",
		"imagen_url":   "imagen_url",
	} {
		if v := normalize.String(raw[field]); v != "" {
			details[key] = v
		}
	}
	for _, flag := range []string{"es_promocion", "es_preventa"} {
		if v, ok := raw[flag].(bool); ok {
			details[flag] = v
		}
	}

	var images []string
	if img := normalize.String(raw["imagen_url"]); img != "" {
		images = []string{img}
	}

	firstSeen, hasFirstSeen := normalize.ParseDateTime(raw["fecha_scraping"])
	lastSeen, hasLastSeen := normalize.ParseDateTime(raw["fecha_actualizacion"])
	if !hasLastSeen {
		lastSeen, hasLastSeen = firstSeen, hasFirstSeen
	}

	listing := &domain.Listing{
		SourceCode:   m.SourceCode(),
		ParseVersion: ParseVersion,

		URL:           url,
		URLNormalized: normalize.URL(url),

		Status:      domain.StatusActive,
		PriceType:   domain.PriceTypeSale,
		PriceAmount: floatPtr(raw["precio"]),
		Currency:    "MXN",

		PropertyType:       "casa",
		AreaConstructionM2: floatPtr(raw["m2_construidos"]),
		AreaLandM2:         floatPtr(raw["m2_terreno"]),
		Bedrooms:           intPtr(raw["recamaras"]),
		Bathrooms:          bathroomsPtr(raw["banos"]),
		AgeYears:           agePtr(0, description, title),

		Title:       normalize.TruncateText(title, maxTitleLen),
		Description: description,

		Colony:       normalize.TruncateText(normalize.Colony(normalize.String(raw["fraccionamiento"])), maxColonyLen),
		Municipality: normalize.TruncateText(normalize.Municipality(normalize.String(raw["ciudad"])), maxMunicipalityLen),
		State:        normalize.TruncateText(stateOrNuevoLeon(raw["estado"]), maxStateLen),
		Country:      "México",

		GeoPrecision: domain.GeoUnknown,

		ImagesJSON:    jsonList(images),
		AmenitiesJSON: jsonList(splitList(normalize.String(raw["amenidades"]))),
		DetailsJSON:   jsonObject(details),
		RawJSON:       rawJSON(raw),
	}
	if hasFirstSeen {
		listing.SourceFirstSeenAt = &firstSeen
	}
	if hasLastSeen {
		listing.SourceLastSeenAt = &lastSeen
	}

	if err := requireEconomicSignal(m.SourceCode(), listing); err != nil {
		return nil, err
	}
	return listing, nil
}
