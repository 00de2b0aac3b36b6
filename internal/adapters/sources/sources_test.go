package sources

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

func TestRegistryCoversEveryMapper(t *testing.T) {
	registry := Registry()
	require.Len(t, registry, len(All()))
	for _, code := range []string{"casas365", "gpvivienda", "realtyworld"} {
		m, ok := registry[code]
		require.True(t, ok, code)
		assert.Equal(t, code, m.SourceCode())
		assert.NotEmpty(t, m.SourceName())
		assert.True(t, strings.HasPrefix(m.BaseURL(), "https://"))
	}
}

func TestCasas365MapsFullRecord(t *testing.T) {
	m := NewCasas365Mapper()

	raw := domain.RawRecord{
		"url":              "HTTPS://WWW.365Casas.com.mx//casa-cumbres-123/#fotos",
		"titulo":           "Casa en Venta en Cumbres",
		"descripcion":      "Amplia casa, construida en 2018, lista para habitar.",
		"estado":           "Disponible",
		"accion":           "Venta",
		"precio":           "$2,500,000",
		"moneda":           "mxn",
		"tipo":             "Casas",
		"construccion_m2":  "150 m2",
		"terreno_m2":       "200 m²",
		"recamaras":        "3",
		"banos":            "2½",
		"estacionamientos": 2,
		"plantas":          "2",
		"calle":            "Paseo de los Leones",
		"colonia":          "cumbres elite, N.L.",
		"ciudad":           "MTY",
		"latitud":          25.6866,
		"longitud":         -100.3161,
		"imagenes":         "https://img.test/1.jpg, https://img.test/2.jpg",
		"agente_nombre":    "Laura",
		"agente_telefono":  "8110000000",
		"fecha_scraping":   "2026-03-01 10:30:00",
	}

	l, err := m.Map(raw)
	require.NoError(t, err)

	assert.Equal(t, "casas365", l.SourceCode)
	assert.Equal(t, ParseVersion, l.ParseVersion)
	assert.Equal(t, "https://www.365casas.com.mx/casa-cumbres-123", l.URLNormalized)

	assert.Equal(t, domain.StatusActive, l.Status)
	assert.Equal(t, domain.PriceTypeSale, l.PriceType)
	require.NotNil(t, l.PriceAmount)
	assert.Equal(t, 2_500_000.0, *l.PriceAmount)
	assert.Equal(t, "MXN", l.Currency)

	assert.Equal(t, "casa", l.PropertyType)
	require.NotNil(t, l.AreaConstructionM2)
	assert.Equal(t, 150.0, *l.AreaConstructionM2)
	require.NotNil(t, l.AreaLandM2)
	assert.Equal(t, 200.0, *l.AreaLandM2)
	require.NotNil(t, l.Bedrooms)
	assert.Equal(t, 3, *l.Bedrooms)
	require.NotNil(t, l.Bathrooms)
	assert.Equal(t, 2.5, *l.Bathrooms)
	require.NotNil(t, l.Parking)
	assert.Equal(t, 2, *l.Parking)

	require.NotNil(t, l.AgeYears)
	assert.Equal(t, time.Now().Year()-2018, *l.AgeYears)

	assert.Equal(t, "Cumbres Elite", l.Colony)
	assert.Equal(t, "Monterrey", l.Municipality)
	assert.Equal(t, "Nuevo León", l.State)
	assert.Equal(t, "México", l.Country)

	assert.Equal(t, domain.GeoExact, l.GeoPrecision)
	require.NotNil(t, l.Lat)
	assert.Equal(t, 25.6866, *l.Lat)

	var images []string
	require.NoError(t, json.Unmarshal(l.ImagesJSON, &images))
	assert.Equal(t, []string{"https://img.test/1.jpg", "https://img.test/2.jpg"}, images)

	var contact map[string]any
	require.NoError(t, json.Unmarshal(l.ContactJSON, &contact))
	assert.Equal(t, "Laura", contact["agent_name"])
	assert.Equal(t, "8110000000", contact["agent_phone"])

	require.NotNil(t, l.SourceFirstSeenAt)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), *l.SourceFirstSeenAt)
	assert.Equal(t, l.SourceFirstSeenAt, l.SourceLastSeenAt)

	assert.NotEmpty(t, l.RawJSON)
}

func TestCasas365TruncatesOverlongStreet(t *testing.T) {
	m := NewCasas365Mapper()

	raw := domain.RawRecord{
		"url":    "https://www.365casas.com.mx/casa-1",
		"precio": 1_000_000,
		"calle":  strings.Repeat("x", 600),
	}

	l, err := m.Map(raw)
	require.NoError(t, err)
	assert.Len(t, l.Street, maxStreetLen)
}

func TestCasas365SoldStatus(t *testing.T) {
	m := NewCasas365Mapper()

	l, err := m.Map(domain.RawRecord{
		"url":    "https://www.365casas.com.mx/casa-2",
		"estado": "Vendida",
		"precio": 1_800_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, l.Status)
}

func TestCasas365RejectsRecordWithoutSignal(t *testing.T) {
	m := NewCasas365Mapper()

	_, err := m.Map(domain.RawRecord{
		"url":    "https://www.365casas.com.mx/casa-3",
		"titulo": "Casa sin datos",
	})
	require.Error(t, err)

	var mapErr *domain.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "casas365", mapErr.SourceCode)
}

func TestGPViviendaFixedAttributesAndModelFallback(t *testing.T) {
	m := NewGPViviendaMapper()

	raw := domain.RawRecord{
		"url":                 "https://www.gpvivienda.com/modelo-encino",
		"modelo":              "Encino Premium",
		"precio":              2_100_000.0,
		"m2_construidos":      140.0,
		"m2_terreno":          160.0,
		"recamaras":           3,
		"banos":               "2",
		"fraccionamiento":     "valle de apodaca",
		"ciudad":              "Apodaca",
		"amenidades":          "Alberca, Casa club",
		"es_preventa":         true,
		"fecha_scraping":      "2026-02-10",
		"fecha_actualizacion": "2026-03-05",
	}

	l, err := m.Map(raw)
	require.NoError(t, err)

	// New builds are always active sale houses on this portal.
	assert.Equal(t, domain.StatusActive, l.Status)
	assert.Equal(t, domain.PriceTypeSale, l.PriceType)
	assert.Equal(t, "casa", l.PropertyType)

	assert.Equal(t, "Encino Premium", l.Title)
	assert.Equal(t, "Valle De Apodaca", l.Colony)
	assert.Equal(t, "Apodaca", l.Municipality)

	var amenities []string
	require.NoError(t, json.Unmarshal(l.AmenitiesJSON, &amenities))
	assert.Equal(t, []string{"Alberca", "Casa club"}, amenities)

	var details map[string]any
	require.NoError(t, json.Unmarshal(l.DetailsJSON, &details))
	assert.Equal(t, true, details["es_preventa"])
	assert.Equal(t, "Encino Premium", details["modelo"])

	require.NotNil(t, l.SourceFirstSeenAt)
	require.NotNil(t, l.SourceLastSeenAt)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), *l.SourceFirstSeenAt)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), *l.SourceLastSeenAt)
}

func TestGPViviendaFallsBackToScrapeDateForLastSeen(t *testing.T) {
	m := NewGPViviendaMapper()

	l, err := m.Map(domain.RawRecord{
		"url":            "https://www.gpvivienda.com/modelo-roble",
		"precio":         1_900_000.0,
		"fecha_scraping": "2026-02-10",
	})
	require.NoError(t, err)

	require.NotNil(t, l.SourceLastSeenAt)
	assert.Equal(t, *l.SourceFirstSeenAt, *l.SourceLastSeenAt)
}

func TestRealtyWorldMapsIdentifierAndAge(t *testing.T) {
	m := NewRealtyWorldMapper()

	raw := domain.RawRecord{
		"url":              "https://www.realtyworld.com.mx/propiedad/RW-4411",
		"property_id":      "RW-4411",
		"titulo":           "Casa en Venta en Contry",
		"descripcion":      "Casa remodelada.",
		"precio":           "3,200,000",
		"construccion_m2":  180.0,
		"terreno_m2":       220.0,
		"recamaras":        4,
		"banos":            "3",
		"medios_banos":     "1",
		"estacionamientos": 2,
		"ano_construccion": 2015,
		"frente_m":         "8",
		"fondo_m":          "27.5",
		"colonia":          "Contry",
		"ciudad":           "Monterrey, N.L.",
		"estado":           "Nuevo León",
		"fecha_scraping":   "2026-03-01 09:00:00",
	}

	l, err := m.Map(raw)
	require.NoError(t, err)

	assert.Equal(t, "RW-4411", l.SourceListingID)
	assert.Equal(t, domain.PriceTypeSale, l.PriceType)
	require.NotNil(t, l.PriceAmount)
	assert.Equal(t, 3_200_000.0, *l.PriceAmount)

	require.NotNil(t, l.HalfBathrooms)
	assert.Equal(t, 1.0, *l.HalfBathrooms)

	// The explicit construction year wins over description phrasing.
	require.NotNil(t, l.AgeYears)
	assert.Equal(t, time.Now().Year()-2015, *l.AgeYears)

	assert.Equal(t, "Monterrey", l.Municipality)

	var details map[string]any
	require.NoError(t, json.Unmarshal(l.DetailsJSON, &details))
	assert.Equal(t, "RW-4411", details["property_id"])
	assert.Equal(t, 27.5, details["fondo_m"])
	assert.Equal(t, float64(2015), details["ano_construccion"])
}

func TestRealtyWorldRentFromTitle(t *testing.T) {
	m := NewRealtyWorldMapper()

	l, err := m.Map(domain.RawRecord{
		"url":    "https://www.realtyworld.com.mx/propiedad/RW-5500",
		"titulo": "Departamento en Renta",
		"precio": 18_000.0,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriceTypeRent, l.PriceType)
}

func TestSplitListTrimsAndDropsEmpties(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a , , b ,"))
	assert.Nil(t, splitList("   "))
}

func TestCurrencyDefaultsToMXN(t *testing.T) {
	assert.Equal(t, "MXN", currencyOrMXN(nil))
	assert.Equal(t, "MXN", currencyOrMXN(""))
	assert.Equal(t, "USD", currencyOrMXN("usd"))
	assert.Equal(t, "EUR", currencyOrMXN("euros"))
}
