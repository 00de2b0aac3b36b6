package sources

import (
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/normalize"
)

// Casas365Mapper translates casas365 portal records. The portal delivers
// geographic coordinates and agent contact data; its "calle" field sometimes
// carries whole descriptions, hence the aggressive truncation.
type Casas365Mapper struct{}

func NewCasas365Mapper() *Casas365Mapper { return &Casas365Mapper{} }

func (m *Casas365Mapper) SourceCode() string { return "casas365" }
func (m *Casas365Mapper) SourceName() string { return "Casas 365" }
func (m *Casas365Mapper) BaseURL() string    { return "https://www.365casas.com.mx" }

func (m *Casas365Mapper) Map(raw domain.RawRecord) (*domain.Listing, error) {
	url := normalize.String(raw["url"])
	title := normalize.String(raw["titulo"])
	description := normalize.String(raw["descripcion"])

	lat := floatPtr(raw["latitud"])
	lng := floatPtr(raw["longitud"])
	geoPrecision := domain.GeoUnknown
	if lat != nil && lng != nil {
		geoPrecision = domain.GeoExact
	}

	contact := map[string]any{}
	for key, field := range map[string]string{
		"agent_name":     "agente_nombre",
		"agent_phone":    "agente_telefono",
		"agent_whatsapp": "agente_whatsapp",
		"agent_email":    "agente_email",
	} {
		if v := normalize.String(raw[field]); v != "" {
			contact[key] = v
		}
	}
	details := map[string]any{}
	if v := normalize.String(raw["accion"]); v != "" {
		details["accion"] = v
	}
	if v, ok := normalize.ParseInt(raw["habitaciones"]); ok {
		details["habitaciones"] = v
	}
	if v := normalize.String(raw["clase_energetica"]); v != "" {
		details["clase_energetica"] = v
	}

	scrapedAt, hasScrapedAt := normalize.ParseDateTime(raw["fecha_scraping"])

	listing := &domain.Listing{
		SourceCode:   m.SourceCode(),
		ParseVersion: ParseVersion,

		URL:           url,
		URLNormalized: normalize.URL(url),

		Status:      domain.ListingStatus(normalize.Status(normalize.String(raw["estado"]))),
		PriceType:   domain.PriceType(normalize.PriceType(normalize.String(raw["accion"]), title)),
		PriceAmount: floatPtr(raw["precio"]),
		Currency:    currencyOrMXN(raw["moneda"]),

		PropertyType:       normalize.PropertyType(normalize.String(raw["tipo"])),
		AreaConstructionM2: floatPtr(raw["construccion_m2"]),
		AreaLandM2:         floatPtr(raw["terreno_m2"]),
		Bedrooms:           intPtr(raw["recamaras"]),
		Bathrooms:          bathroomsPtr(raw["banos"]),
		Parking:            intPtr(raw["estacionamientos"]),
		Floors:             intPtr(raw["plantas"]),
		AgeYears:           agePtr(0, description, title),

		Title:       normalize.TruncateText(title, maxTitleLen),
		Description: description,

		Street:       normalize.TruncateText(normalize.String(raw["calle"]), maxStreetLen),
		Colony:       normalize.TruncateText(normalize.Colony(normalize.String(raw["colonia"])), maxColonyLen),
		Municipality: normalize.TruncateText(normalize.Municipality(normalize.String(raw["ciudad"])), maxMunicipalityLen),
		State:        normalize.TruncateText(stateOrNuevoLeon(raw["estado_geo"]), maxStateLen),
		Country:      "México",

		Lat:          lat,
		Lng:          lng,
		GeoPrecision: geoPrecision,

		ImagesJSON:  jsonList(splitList(normalize.String(raw["imagenes"]))),
		ContactJSON: jsonObject(contact),
		DetailsJSON: jsonObject(details),
		RawJSON:     rawJSON(raw),
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

func stateOrNuevoLeon(raw any) string {
	if s := normalize.String(raw); s != "" {
		return s
	}
	return "Nuevo León"
}
