// Package sources holds the per-portal mappers that translate raw harvested
// records into the canonical listing shape. The set is closed: one mapper
// per portal, selected by source code. Mappers perform no I/O.
package sources

import (
	"encoding/json"
	"strings"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/normalize"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

// ParseVersion tags every mapped listing with the mapper generation that
// produced it, so re-parses of old raw payloads are distinguishable.
const ParseVersion = "unify_v1"

// Canonical column limits. The full value always survives in raw_json, so
// truncation is lossless overall.
const (
	maxTitleLen        = 500
	maxStreetLen       = 255
	maxColonyLen       = 180
	maxMunicipalityLen = 180
	maxStateLen        = 120
)

// All returns one mapper per supported portal.
func All() []port.SourceMapperPort {
	return []port.SourceMapperPort{
		NewCasas365Mapper(),
		NewGPViviendaMapper(),
		NewRealtyWorldMapper(),
	}
}

// Registry indexes mappers by source code.
func Registry() map[string]port.SourceMapperPort {
	byCode := make(map[string]port.SourceMapperPort)
	for _, m := range All() {
		byCode[m.SourceCode()] = m
	}
	return byCode
}

// rawJSON re-encodes the full raw record verbatim for preservation.
func rawJSON(raw domain.RawRecord) json.RawMessage {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return b
}

// jsonList encodes a string slice, returning nil for empty lists so the
// column stays NULL instead of "[]".
func jsonList(items []string) json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return b
}

func jsonObject(m map[string]any) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

// splitList breaks a comma-separated portal field into trimmed entries.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func floatPtr(raw any) *float64 {
	if f, ok := normalize.ParseFloat(raw); ok {
		return &f
	}
	return nil
}

func intPtr(raw any) *int {
	if i, ok := normalize.ParseInt(raw); ok {
		return &i
	}
	return nil
}

func bathroomsPtr(raw any) *float64 {
	if f, ok := normalize.ParseBathrooms(raw); ok {
		return &f
	}
	return nil
}

func agePtr(constructionYear int, texts ...string) *int {
	if age, ok := normalize.InferAgeYears(constructionYear, texts...); ok {
		return &age
	}
	return nil
}

func currencyOrMXN(raw any) string {
	c := strings.ToUpper(normalize.String(raw))
	if len(c) >= 3 {
		return c[:3]
	}
	return "MXN"
}

// requireEconomicSignal rejects records lacking both price and area; such
// records can never serve as comparable candidates.
func requireEconomicSignal(sourceCode string, l *domain.Listing) error {
	if l.HasEconomicSignal() {
		return nil
	}
	return &domain.MappingError{
		SourceCode: sourceCode,
		Reason:     "record has neither price nor area signal",
	}
}
