package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"plain number", "120", 120, true},
		{"area with unit", "120 m2", 120, true},
		{"area with superscript", "85.5m²", 85.5, true},
		{"price with currency", "$2,500,000", 2500000, true},
		{"native float", 99.9, 99.9, true},
		{"native int", 42, 42, true},
		{"negative", "-12.5", -12.5, true},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"no digits", "consultar precio", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFloat(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseBathrooms(t *testing.T) {
	got, ok := ParseBathrooms("2½")
	require.True(t, ok)
	assert.Equal(t, 2.5, got)

	got, ok = ParseBathrooms("3")
	require.True(t, ok)
	assert.Equal(t, 3.0, got)

	_, ok = ParseBathrooms("")
	assert.False(t, ok)
}

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "HTTPS://WWW.Example.COM/Casa-123", "https://www.example.com/Casa-123"},
		{"strips trailing slash", "https://portal.mx/listado/", "https://portal.mx/listado"},
		{"collapses slashes", "https://portal.mx//casa///123", "https://portal.mx/casa/123"},
		{"drops fragment", "https://portal.mx/casa#fotos", "https://portal.mx/casa"},
		{"keeps query", "https://portal.mx/casa?id=5", "https://portal.mx/casa?id=5"},
		{"rejects relative", "/casa/123", ""},
		{"rejects empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.in))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "sold", Status("Vendida"))
	assert.Equal(t, "sold", Status("SOLD"))
	assert.Equal(t, "inactive", Status("dado de baja"))
	assert.Equal(t, "inactive", Status("No disponible"))
	assert.Equal(t, "active", Status("disponible"))
	assert.Equal(t, "active", Status(""))
}

func TestPriceType(t *testing.T) {
	assert.Equal(t, "rent", PriceType("Casa en Renta"))
	assert.Equal(t, "sale", PriceType("venta"))
	assert.Equal(t, "sale", PriceType("", "Casa en Venta en Cumbres"))
	assert.Equal(t, "unknown", PriceType("traspaso"))
}

func TestMunicipality(t *testing.T) {
	assert.Equal(t, "Monterrey", Municipality("MTY"))
	assert.Equal(t, "Monterrey", Municipality("monterrey, n.l."))
	assert.Equal(t, "San Pedro Garza García", Municipality("san pedro"))
	assert.Equal(t, "San Pedro Garza García", Municipality("SPGG"))
	assert.Equal(t, "General Escobedo", Municipality("Gral. Escobedo"))
	assert.Equal(t, "Santa Catarina", Municipality("Sta. Catarina"))
	// Unknown names pass through title-cased.
	assert.Equal(t, "Apodaca", Municipality("APODACA"))
	assert.Equal(t, "", Municipality("  "))
}

func TestColony(t *testing.T) {
	assert.Equal(t, "Cumbres Elite", Colony("Cumbres Elite, Nuevo León"))
	assert.Equal(t, "Del Valle", Colony("del valle, N.L."))
	assert.Equal(t, "Contry", Colony("  CONTRY  "))
	assert.Equal(t, "", Colony(""))
}

func TestInferAgeYears(t *testing.T) {
	currentYear := time.Now().Year()

	age, ok := InferAgeYears(currentYear - 7)
	require.True(t, ok)
	assert.Equal(t, 7, age)

	age, ok = InferAgeYears(0, "Hermosa casa construida en 2018, tres recámaras")
	require.True(t, ok)
	assert.Equal(t, currentYear-2018, age)

	age, ok = InferAgeYears(0, "Propiedad con 15 años de antigüedad")
	require.True(t, ok)
	assert.Equal(t, 15, age)

	_, ok = InferAgeYears(0, "casa nueva en esquina")
	assert.False(t, ok)

	// A future construction year is not trusted.
	_, ok = InferAgeYears(currentYear + 1)
	assert.False(t, ok)
}

func TestValidateSalePrice(t *testing.T) {
	price := func(v float64) *float64 { return &v }

	ok, _ := ValidateSalePrice(price(2_500_000), price(150), "sale")
	assert.True(t, ok)

	ok, reason := ValidateSalePrice(price(50_000), nil, "sale")
	assert.False(t, ok)
	assert.Contains(t, reason, "below")

	ok, reason = ValidateSalePrice(price(500_000_000), nil, "sale")
	assert.False(t, ok)
	assert.Contains(t, reason, "above")

	// 10M over 20 m2 is 500k per m2, far above plausible.
	ok, reason = ValidateSalePrice(price(10_000_000), price(20), "sale")
	assert.False(t, ok)
	assert.Contains(t, reason, "per m²")

	// Rent listings and priceless listings pass through.
	ok, _ = ValidateSalePrice(price(15_000), nil, "rent")
	assert.True(t, ok)
	ok, _ = ValidateSalePrice(nil, nil, "sale")
	assert.True(t, ok)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", TruncateText("abc", 10))
	assert.Equal(t, "abcde", TruncateText("abcdefgh", 5))
	// Multibyte text truncates on rune boundaries.
	assert.Equal(t, "áéí", TruncateText("áéíóú", 3))
}

func TestPropertyType(t *testing.T) {
	assert.Equal(t, "casa", PropertyType("Casas"))
	assert.Equal(t, "departamento", PropertyType("Depto."))
	assert.Equal(t, "terreno", PropertyType("Lote"))
	assert.Equal(t, "bodega", PropertyType("BODEGA"))
	// Unknown labels pass through lowercased.
	assert.Equal(t, "quinta", PropertyType("Quinta"))
	assert.Equal(t, "", PropertyType(" "))
}

func TestParseDateTime(t *testing.T) {
	got, ok := ParseDateTime("2024-03-15 10:30:00")
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())

	got, ok = ParseDateTime("15/03/2024")
	require.True(t, ok)
	assert.Equal(t, time.March, got.Month())

	_, ok = ParseDateTime("ayer")
	assert.False(t, ok)
}
