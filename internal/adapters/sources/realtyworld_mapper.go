package sources

import (
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/normalize"
)

// RealtyWorldMapper translates realtyworld portal records. The only portal
// with a stable per-listing identifier (property_id) and an explicit
// construction year, so age comes from the year before falling back to
// description phrasing.
type RealtyWorldMapper struct{}

func NewRealtyWorldMapper() *RealtyWorldMapper { return &RealtyWorldMapper{} }

func (m *RealtyWorldMapper) SourceCode() string { return "realtyworld" }
func (m *RealtyWorldMapper) SourceName() string { return "Realty World" }
func (m *RealtyWorldMapper) BaseURL() string    { return "https://www.realtyworld.com.mx" }

func (m *RealtyWorldMapper) Map(raw domain.RawRecord) (*domain.Listing, error) {
	url := normalize.String(raw["url"])
	title := normalize.String(raw["titulo"])
	description := normalize.String(raw["descripcion"])

	constructionYear := 0
	if y, ok := normalize.ParseInt(raw["ano_construccion"]); ok {
		constructionYear = y
	}

	details := map[string]any{}
	for key, field := range map[string]string{
		"property_id":       "property_id",
		"fecha_publicacion": "fecha_publicacion",
		"precio_texto":      "precio_texto",
	} {
		if v := normalize.String(raw[field]); v != "" {
			details[key] = v
		}
	}
	if v, ok := normalize.ParseFloat(raw["frente_m"]); ok {
		details["frente_m"] = v
	}
	if v, ok := normalize.ParseFloat(raw["fondo_m"]); ok {
		details["fondo_m"] = v
	}
	if constructionYear > 0 {
		details["ano_construccion"] = constructionYear
	}

	scrapedAt, hasScrapedAt := normalize.ParseDateTime(raw["fecha_scraping"])

	listing := &domain.Listing{
		SourceCode:      m.SourceCode(),
		SourceListingID: normalize.String(raw["property_id"]),
		ParseVersion:    ParseVersion,

		URL:           url,
		URLNormalized: normalize.URL(url),

		Status:      domain.StatusActive,
		PriceType:   domain.PriceType(normalize.PriceType(title)),
		PriceAmount: floatPtr(raw["precio"]),
		Currency:    "MXN",

		PropertyType:       "casa",
		AreaConstructionM2: floatPtr(raw["construccion_m2"]),
		AreaLandM2:         floatPtr(raw["terreno_m2"]),
		Bedrooms:           intPtr(raw["recamaras"]),
		Bathrooms:          bathroomsPtr(raw["banos"]),
		HalfBathrooms:      floatPtr(raw["medios_banos"]),
		Parking:            intPtr(raw["estacionamientos"]),
		Floors:             intPtr(raw["plantas"]),
		AgeYears:           agePtr(constructionYear, description, title),

		Title:       normalize.TruncateText(title, maxTitleLen),
		Description: description,

		Colony:       normalize.TruncateText(normalize.Colony(normalize.String(raw["colonia"])), maxColonyLen),
		Municipality: normalize.TruncateText(normalize.Municipality(normalize.String(raw["ciudad"])), maxMunicipalityLen),
		State:        normalize.TruncateText(normalize.String(raw["estado"]), maxStateLen),
		Country:      "México",

		GeoPrecision: domain.GeoUnknown,

		ImagesJSON:    jsonList(splitList(normalize.String(raw["imagenes"]))),
		AmenitiesJSON: jsonList(splitList(normalize.String(raw["amenidades"]))),
		DetailsJSON:   jsonObject(details),
		RawJSON:       rawJSON(raw),
	}
	if hasScrapedAt {
		listing.SourceFirstSeenAt = &scrapedAt
		listing.SourceLastSeenAt = &scrapedAt
	}

	if err := requireEconomicSignal(m.SourceCode(), listing); err != nil {
		return nil, err
	}
	return listing, nil
}
