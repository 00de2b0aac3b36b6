package port

import (
	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

// SourceMapperPort translates one source-specific raw record into the
// canonical Listing shape. Implementations are a closed set, one per
// portal, selected by source code. Mapping performs no I/O.
type SourceMapperPort interface {
	SourceCode() string
	SourceName() string
	BaseURL() string

	// Map returns *domain.MappingError when required identity fields are
	// entirely absent.
	Map(raw domain.RawRecord) (*domain.Listing, error)
}
