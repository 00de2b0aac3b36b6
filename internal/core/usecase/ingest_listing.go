package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
	"github.com/mgomezoc/valoranl-core/internal/core/normalize"
	"github.com/mgomezoc/valoranl-core/internal/core/port"
)

// IngestListingUseCase drives one batch of raw source records through the
// map, validate and resolve stages. A failure on one record never aborts
// the batch; every outcome lands in the run metrics.
type IngestListingUseCase struct {
	mappers  map[string]port.SourceMapperPort
	resolver *ResolveListingUseCase
	storage  port.ListingStoragePort
	logger   port.LoggerPort
	now      func() time.Time
}

func NewIngestListingUseCase(mappers []port.SourceMapperPort, resolver *ResolveListingUseCase, storage port.ListingStoragePort, logger port.LoggerPort) *IngestListingUseCase {
	byCode := make(map[string]port.SourceMapperPort, len(mappers))
	for _, m := range mappers {
		byCode[m.SourceCode()] = m
	}
	return &IngestListingUseCase{
		mappers:  byCode,
		resolver: resolver,
		storage:  storage,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestBatch maps and upserts every record in the batch under the given
// source code, then persists an execution log row. The returned metrics
// always describe all records, even when some failed.
func (uc *IngestListingUseCase) IngestBatch(ctx context.Context, sourceCode string, records []domain.RawRecord) (domain.IngestMetrics, error) {
	mapper, ok := uc.mappers[sourceCode]
	if !ok {
		return domain.IngestMetrics{}, fmt.Errorf("no mapper registered for source %q", sourceCode)
	}

	run := domain.IngestionRun{
		ID:        uuid.New(),
		StartedAt: uc.now(),
	}

	if _, err := uc.storage.EnsureSource(ctx, domain.Source{
		SourceCode: mapper.SourceCode(),
		SourceName: mapper.SourceName(),
		BaseURL:    mapper.BaseURL(),
		IsActive:   true,
	}); err != nil {
		return domain.IngestMetrics{}, fmt.Errorf("failed to ensure source %q: %w", sourceCode, err)
	}

	var metrics domain.IngestMetrics
	for _, raw := range records {
		metrics.Read++
		uc.ingestOne(ctx, mapper, raw, &metrics)
	}

	run.CompletedAt = uc.now()
	run.Metrics = metrics
	run.Status = runStatus(metrics)
	if err := uc.storage.SaveRun(ctx, run); err != nil {
		uc.logger.Error("Failed to save ingestion run", err, port.Fields{
			"run_id": run.ID.String(),
		})
	}

	uc.logger.Info("Ingestion batch completed", port.Fields{
		"run_id":           run.ID.String(),
		"source_code":      sourceCode,
		"read":             metrics.Read,
		"inserted":         metrics.Inserted,
		"updated":          metrics.Updated,
		"unchanged":        metrics.Unchanged,
		"skipped_mapping":  metrics.SkippedMapping,
		"skipped_identity": metrics.SkippedIdentity,
		"skipped_price":    metrics.SkippedPrice,
		"errors":           metrics.Errors,
	})
	return metrics, nil
}

func (uc *IngestListingUseCase) ingestOne(ctx context.Context, mapper port.SourceMapperPort, raw domain.RawRecord, metrics *domain.IngestMetrics) {
	listing, err := mapper.Map(raw)
	if err != nil {
		var mapErr *domain.MappingError
		if errors.As(err, &mapErr) {
			metrics.SkippedMapping++
			uc.logger.Warn("Record rejected by mapper", port.Fields{
				"source_code": mapper.SourceCode(),
				"reason":      mapErr.Reason,
			})
			return
		}
		metrics.Errors++
		uc.logger.Error("Mapping failed", err, port.Fields{
			"source_code": mapper.SourceCode(),
		})
		return
	}

	if ok, reason := normalize.ValidateSalePrice(listing.PriceAmount, listing.AreaConstructionM2, string(listing.PriceType)); !ok {
		metrics.SkippedPrice++
		uc.logger.Warn("Record rejected by price gate", port.Fields{
			"source_code": listing.SourceCode,
			"url":         listing.URL,
			"reason":      reason,
		})
		return
	}

	if !listing.HasEconomicSignal() {
		metrics.SkippedIdentity++
		uc.logger.Warn("Record carries no economic signal", port.Fields{
			"source_code": listing.SourceCode,
			"url":         listing.URL,
		})
		return
	}

	result, err := uc.resolver.ResolveAndUpsert(ctx, listing)
	if err != nil {
		var idErr *domain.IdentityError
		if errors.As(err, &idErr) {
			metrics.SkippedIdentity++
			uc.logger.Warn("Record has no derivable identity", port.Fields{
				"source_code": listing.SourceCode,
				"reason":      idErr.Reason,
			})
			return
		}
		metrics.Errors++
		uc.logger.Error("Upsert failed", err, port.Fields{
			"source_code": listing.SourceCode,
			"url":         listing.URL,
		})
		return
	}

	switch {
	case result.Created:
		metrics.Inserted++
	case len(result.ChangedFields) > 0:
		metrics.Updated++
	default:
		metrics.Unchanged++
	}
}

func runStatus(m domain.IngestMetrics) domain.RunStatus {
	switch {
	case m.Errors == 0:
		return domain.RunSuccess
	case m.Errors < m.Read:
		return domain.RunPartial
	default:
		return domain.RunFailed
	}
}
