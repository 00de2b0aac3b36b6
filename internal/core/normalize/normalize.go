// Package normalize holds the shared field normalization used by every
// source mapper: numeric parsing of messy portal text, canonical
// dictionaries for property types and Nuevo León locations, and the age
// inference heuristics.
package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CleanText trims whitespace and collapses empty values to "".
func CleanText(v string) string {
	return strings.TrimSpace(v)
}

// TruncateText caps a value to the canonical column limit. The full value
// survives inside raw_json, so truncation here is lossless overall.
func TruncateText(v string, maxLen int) string {
	if len(v) <= maxLen {
		return v
	}
	runes := []rune(v)
	if len(runes) <= maxLen {
		return v
	}
	return string(runes[:maxLen])
}

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseFloat extracts a numeric value from portal text such as "120 m2",
// "120m²" or "$2,500,000". Returns (0, false) when no number is present.
func ParseFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	text := strings.TrimSpace(toString(v))
	if text == "" {
		return 0, false
	}
	for _, junk := range []string{"m²", "m2", "mts", "$", ","} {
		text = strings.ReplaceAll(text, junk, "")
	}
	match := numberRe.FindString(text)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInt rounds a parsed float to the nearest integer.
func ParseInt(v any) (int, bool) {
	f, ok := ParseFloat(v)
	if !ok {
		return 0, false
	}
	if f >= 0 {
		return int(f + 0.5), true
	}
	return int(f - 0.5), true
}

// ParseBathrooms handles the "2½" notation some portals use.
func ParseBathrooms(v any) (float64, bool) {
	text := strings.TrimSpace(toString(v))
	if text == "" {
		return 0, false
	}
	text = strings.ReplaceAll(text, "½", ".5")
	match := numberRe.FindString(text)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// String coerces a raw value to trimmed text.
func String(v any) string {
	return CleanText(toString(v))
}

var multiSlashRe = regexp.MustCompile(`/+`)

// URL lowercases scheme and host, collapses duplicate slashes, strips the
// trailing slash and drops the fragment. A stable input for url_hash.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	path := multiSlashRe.ReplaceAllString(u.Path, "/")
	path = strings.TrimRight(path, "/")
	normalized := url.URL{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     strings.ToLower(u.Host),
		Path:     path,
		RawQuery: u.RawQuery,
	}
	return normalized.String()
}

// Status maps free-form portal status text to the canonical enum.
func Status(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case containsAny(text, "vend", "sold"):
		return "sold"
	case containsAny(text, "inactiv", "baja", "no disponible"):
		return "inactive"
	case text != "":
		return "active"
	default:
		return "active"
	}
}

// PriceType infers sale vs rent from any of the given texts.
func PriceType(texts ...string) string {
	joined := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(joined, "renta") || strings.Contains(joined, "rent"):
		return "rent"
	case strings.Contains(joined, "venta") || strings.Contains(joined, "sale"):
		return "sale"
	default:
		return "unknown"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var propertyTypeMap = map[string]string{
	"casa":            "casa",
	"casas":           "casa",
	"house":           "casa",
	"residencia":      "casa",
	"departamento":    "departamento",
	"depto":           "departamento",
	"depto.":          "departamento",
	"departamentos":   "departamento",
	"apartment":       "departamento",
	"terreno":         "terreno",
	"terrenos":        "terreno",
	"lote":            "terreno",
	"land":            "terreno",
	"local":           "local",
	"local comercial": "local",
	"oficina":         "oficina",
	"bodega":          "bodega",
	"rancho":          "rancho",
}

// PropertyType maps a portal's type label to the canonical vocabulary.
// Unknown labels pass through lowercased rather than being discarded.
func PropertyType(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if canonical, ok := propertyTypeMap[key]; ok {
		return canonical
	}
	return key
}

var municipalityAliases = map[string]string{
	"sta. catarina":              "Santa Catarina",
	"sta catarina":               "Santa Catarina",
	"santa catarina, n.l.":       "Santa Catarina",
	"mty":                        "Monterrey",
	"mty.":                       "Monterrey",
	"monterrey, n.l.":            "Monterrey",
	"san pedro":                  "San Pedro Garza García",
	"san pedro garza garcia":     "San Pedro Garza García",
	"san pedro garza garcía, n.l.": "San Pedro Garza García",
	"spgg":                       "San Pedro Garza García",
	"gral. escobedo":             "General Escobedo",
	"gral escobedo":              "General Escobedo",
	"general escobedo":           "General Escobedo",
	"guadalupe, n.l.":            "Guadalupe",
	"garcia":                     "García",
	"juarez":                     "Juárez",
	"cadereyta jimenez":          "Cadereyta Jiménez",
	"cienega de flores":          "Ciénega de Flores",
	"santiago, n.l.":             "Santiago",
}

// Municipality resolves common Nuevo León aliases and abbreviations to the
// official municipality name.
func Municipality(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if canonical, ok := municipalityAliases[strings.ToLower(text)]; ok {
		return canonical
	}
	return Title(text)
}

var (
	colonyStateSuffixRe = regexp.MustCompile(`(?i),?\s*Nuevo León$`)
	colonyNLSuffixRe    = regexp.MustCompile(`(?i),?\s*N\.?L\.?$`)
)

// Colony strips noisy state suffixes portals append to neighborhood names.
func Colony(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = colonyStateSuffixRe.ReplaceAllString(text, "")
	text = colonyNLSuffixRe.ReplaceAllString(text, "")
	text = strings.Trim(strings.TrimSpace(text), ",")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return Title(text)
}

// Title capitalizes each word, keeping the rest lowercase. Used for location
// text, which the portals deliver in arbitrary casing.
func Title(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var (
	ageFromYearRe  = regexp.MustCompile(`(?i)(?:construi(?:da|do)\s+en|año\s+(?:de\s+)?construcci[oó]n[:\s]*|built\s+in)\s*(\d{4})`)
	ageFromYearsRe = regexp.MustCompile(`(?i)(\d{1,3})\s*años?\s+de\s+antig[uü]edad`)
)

// InferAgeYears estimates a property's age from a construction-year field
// when present, else from description/title phrasing like "construida en
// 2018" or "15 años de antigüedad".
func InferAgeYears(constructionYear int, texts ...string) (int, bool) {
	currentYear := time.Now().Year()
	if constructionYear > 1900 && constructionYear <= currentYear {
		return currentYear - constructionYear, true
	}
	for _, text := range texts {
		if text == "" {
			continue
		}
		if m := ageFromYearRe.FindStringSubmatch(text); m != nil {
			year, err := strconv.Atoi(m[1])
			if err == nil && year > 1900 && year <= currentYear {
				return currentYear - year, true
			}
		}
		if m := ageFromYearsRe.FindStringSubmatch(text); m != nil {
			years, err := strconv.Atoi(m[1])
			if err == nil && years >= 0 && years <= 120 {
				return years, true
			}
		}
	}
	return 0, false
}

// Price plausibility bounds for Nuevo León sale listings. Listings outside
// these are junk data, not market signal.
const (
	MinSalePrice = 100_000
	MaxSalePrice = 100_000_000
	MinPPUM2     = 3_000
	MaxPPUM2     = 80_000
)

// ValidateSalePrice reports whether a sale price is plausible, with a reason
// when it is not. Rent listings and priceless listings pass through.
func ValidateSalePrice(price, areaConstructionM2 *float64, priceType string) (bool, string) {
	if price == nil || priceType != "sale" {
		return true, ""
	}
	p := *price
	if p < MinSalePrice {
		return false, "sale price below plausible minimum"
	}
	if p > MaxSalePrice {
		return false, "sale price above plausible maximum"
	}
	if areaConstructionM2 != nil && *areaConstructionM2 > 0 {
		ppu := p / *areaConstructionM2
		if ppu < MinPPUM2 {
			return false, "price per m² below plausible minimum"
		}
		if ppu > MaxPPUM2 {
			return false, "price per m² above plausible maximum"
		}
	}
	return true, ""
}

// ParseDateTime tries the date formats seen across the portals.
func ParseDateTime(v any) (time.Time, bool) {
	text := strings.TrimSpace(toString(v))
	if text == "" {
		return time.Time{}, false
	}
	formats := []string{"2006-01-02 15:04:05", "2006-01-02", "02/01/2006", "02-01-2006", time.RFC3339}
	for _, f := range formats {
		if t, err := time.Parse(f, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
