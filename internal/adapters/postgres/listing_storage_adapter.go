package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mgomezoc/valoranl-core/internal/core/domain"
)

const uniqueViolationCode = "23505"

// ListingStorageAdapter implements ListingStoragePort on PostgreSQL.
type ListingStorageAdapter struct {
	pool *pgxpool.Pool
}

func NewListingStorageAdapter(pool *pgxpool.Pool) (*ListingStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &ListingStorageAdapter{pool: pool}, nil
}

// EnsureSource registers the source catalog row if absent and returns its id.
func (a *ListingStorageAdapter) EnsureSource(ctx context.Context, src domain.Source) (int64, error) {
	var id int64
	err := a.pool.QueryRow(ctx, `
		INSERT INTO sources (source_code, source_name, base_url, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_code) DO UPDATE SET is_active = EXCLUDED.is_active
		RETURNING id;
	`, src.SourceCode, src.SourceName, src.BaseURL, src.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure source %s: %w", src.SourceCode, err)
	}
	return id, nil
}

const listingColumns = `
	l.id, s.source_code, l.source_listing_id, l.parse_version,
	l.url, l.url_normalized, l.url_hash, l.fingerprint_hash, l.dedupe_hash,
	l.status, l.price_type, l.price_amount, l.currency, l.maintenance_fee,
	l.property_type, l.area_construction_m2, l.area_land_m2,
	l.bedrooms, l.bathrooms, l.half_bathrooms, l.parking, l.floors, l.age_years,
	l.title, l.description,
	l.street, l.colony, l.municipality, l.state, l.country, l.postal_code,
	l.lat, l.lng, l.geo_precision,
	l.images_json, l.contact_json, l.amenities_json, l.details_json, l.raw_json,
	l.source_first_seen_at, l.source_last_seen_at, l.seen_first_at, l.seen_last_at`

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var sourceListingID, title, description, street, colony, municipality, state, country, postalCode *string
	var parseVersion, url, urlNormalized, urlHash, fingerprintHash, currency *string
	err := row.Scan(
		&l.ID, &l.SourceCode, &sourceListingID, &parseVersion,
		&url, &urlNormalized, &urlHash, &fingerprintHash, &l.DedupeHash,
		&l.Status, &l.PriceType, &l.PriceAmount, &currency, &l.MaintenanceFee,
		&l.PropertyType, &l.AreaConstructionM2, &l.AreaLandM2,
		&l.Bedrooms, &l.Bathrooms, &l.HalfBathrooms, &l.Parking, &l.Floors, &l.AgeYears,
		&title, &description,
		&street, &colony, &municipality, &state, &country, &postalCode,
		&l.Lat, &l.Lng, &l.GeoPrecision,
		&l.ImagesJSON, &l.ContactJSON, &l.AmenitiesJSON, &l.DetailsJSON, &l.RawJSON,
		&l.SourceFirstSeenAt, &l.SourceLastSeenAt, &l.SeenFirstAt, &l.SeenLastAt,
	)
	if err != nil {
		return nil, err
	}
	l.SourceListingID = deref(sourceListingID)
	l.ParseVersion = deref(parseVersion)
	l.URL = deref(url)
	l.URLNormalized = deref(urlNormalized)
	l.URLHash = deref(urlHash)
	l.FingerprintHash = deref(fingerprintHash)
	l.Currency = deref(currency)
	l.Title = deref(title)
	l.Description = deref(description)
	l.Street = deref(street)
	l.Colony = deref(colony)
	l.Municipality = deref(municipality)
	l.State = deref(state)
	l.Country = deref(country)
	l.PostalCode = deref(postalCode)
	return &l, nil
}

func (a *ListingStorageAdapter) GetByDedupeHash(ctx context.Context, dedupeHash string) (*domain.Listing, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT`+listingColumns+`
		FROM listings l
		JOIN sources s ON s.id = l.source_id
		WHERE l.dedupe_hash = $1;
	`, dedupeHash)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing by dedupe_hash: %w", err)
	}
	return listing, nil
}

func (a *ListingStorageAdapter) Insert(ctx context.Context, l *domain.Listing) (int64, error) {
	var id int64
	err := a.pool.QueryRow(ctx, `
		INSERT INTO listings (
			source_id, source_listing_id, parse_version,
			url, url_normalized, url_hash, fingerprint_hash, dedupe_hash,
			status, price_type, price_amount, currency, maintenance_fee,
			property_type, area_construction_m2, area_land_m2,
			bedrooms, bathrooms, half_bathrooms, parking, floors, age_years,
			title, description,
			street, colony, municipality, state, country, postal_code,
			lat, lng, geo_precision,
			images_json, contact_json, amenities_json, details_json, raw_json,
			source_first_seen_at, source_last_seen_at, seen_first_at, seen_last_at
		) VALUES (
			(SELECT id FROM sources WHERE source_code = $1),
			$2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42
		)
		RETURNING id;
	`,
		l.SourceCode, nilIfEmpty(l.SourceListingID), nilIfEmpty(l.ParseVersion),
		nilIfEmpty(l.URL), nilIfEmpty(l.URLNormalized), nilIfEmpty(l.URLHash), nilIfEmpty(l.FingerprintHash), l.DedupeHash,
		l.Status, l.PriceType, l.PriceAmount, nilIfEmpty(l.Currency), l.MaintenanceFee,
		nilIfEmpty(l.PropertyType), l.AreaConstructionM2, l.AreaLandM2,
		l.Bedrooms, l.Bathrooms, l.HalfBathrooms, l.Parking, l.Floors, l.AgeYears,
		nilIfEmpty(l.Title), nilIfEmpty(l.Description),
		nilIfEmpty(l.Street), nilIfEmpty(l.Colony), nilIfEmpty(l.Municipality), nilIfEmpty(l.State), nilIfEmpty(l.Country), nilIfEmpty(l.PostalCode),
		l.Lat, l.Lng, l.GeoPrecision,
		rawOrNil(l.ImagesJSON), rawOrNil(l.ContactJSON), rawOrNil(l.AmenitiesJSON), rawOrNil(l.DetailsJSON), rawOrNil(l.RawJSON),
		l.SourceFirstSeenAt, l.SourceLastSeenAt, l.SeenFirstAt, l.SeenLastAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, domain.ErrDuplicateDedupeHash
		}
		return 0, fmt.Errorf("failed to insert listing: %w", err)
	}
	return id, nil
}

func (a *ListingStorageAdapter) Update(ctx context.Context, l *domain.Listing) error {
	tag, err := a.pool.Exec(ctx, `
		UPDATE listings SET
			source_listing_id = $2, parse_version = $3,
			url = $4, url_normalized = $5, url_hash = $6, fingerprint_hash = $7,
			status = $8, price_type = $9, price_amount = $10, currency = $11, maintenance_fee = $12,
			property_type = $13, area_construction_m2 = $14, area_land_m2 = $15,
			bedrooms = $16, bathrooms = $17, half_bathrooms = $18, parking = $19, floors = $20, age_years = $21,
			title = $22, description = $23,
			street = $24, colony = $25, municipality = $26, state = $27, country = $28, postal_code = $29,
			lat = $30, lng = $31, geo_precision = $32,
			images_json = $33, contact_json = $34, amenities_json = $35, details_json = $36, raw_json = $37,
			source_first_seen_at = $38, source_last_seen_at = $39, seen_first_at = $40, seen_last_at = $41
		WHERE id = $1;
	`,
		l.ID,
		nilIfEmpty(l.SourceListingID), nilIfEmpty(l.ParseVersion),
		nilIfEmpty(l.URL), nilIfEmpty(l.URLNormalized), nilIfEmpty(l.URLHash), nilIfEmpty(l.FingerprintHash),
		l.Status, l.PriceType, l.PriceAmount, nilIfEmpty(l.Currency), l.MaintenanceFee,
		nilIfEmpty(l.PropertyType), l.AreaConstructionM2, l.AreaLandM2,
		l.Bedrooms, l.Bathrooms, l.HalfBathrooms, l.Parking, l.Floors, l.AgeYears,
		nilIfEmpty(l.Title), nilIfEmpty(l.Description),
		nilIfEmpty(l.Street), nilIfEmpty(l.Colony), nilIfEmpty(l.Municipality), nilIfEmpty(l.State), nilIfEmpty(l.Country), nilIfEmpty(l.PostalCode),
		l.Lat, l.Lng, l.GeoPrecision,
		rawOrNil(l.ImagesJSON), rawOrNil(l.ContactJSON), rawOrNil(l.AmenitiesJSON), rawOrNil(l.DetailsJSON), rawOrNil(l.RawJSON),
		l.SourceFirstSeenAt, l.SourceLastSeenAt, l.SeenFirstAt, l.SeenLastAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (a *ListingStorageAdapter) AppendPriceHistory(ctx context.Context, entry domain.PriceHistoryEntry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO listing_price_history (listing_id, status, price_amount, currency, captured_at)
		VALUES ($1, $2, $3, $4, $5);
	`, entry.ListingID, entry.Status, entry.PriceAmount, nilIfEmpty(entry.Currency), entry.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (a *ListingStorageAdapter) AppendStatusHistory(ctx context.Context, entry domain.StatusHistoryEntry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO listing_status_history (listing_id, old_status, new_status, changed_at)
		VALUES ($1, $2, $3, $4);
	`, entry.ListingID, entry.OldStatus, entry.NewStatus, entry.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (a *ListingStorageAdapter) AppendFieldHistory(ctx context.Context, entries []domain.FieldHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO listing_field_history (listing_id, field_name, old_value, new_value, change_category, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6);
		`, e.ListingID, e.Change.Field, valueText(e.Change.Old), valueText(e.Change.New), e.Change.Category, e.ChangedAt)
	}
	br := a.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append field history: %w", err)
		}
	}
	return nil
}

func (a *ListingStorageAdapter) GetComparablePool(ctx context.Context, municipality string, priceType domain.PriceType) ([]domain.Listing, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT`+listingColumns+`
		FROM listings l
		JOIN sources s ON s.id = l.source_id
		WHERE l.status = 'active'
		  AND l.price_type = $2
		  AND lower(l.municipality) = lower($1)
		  AND l.price_amount IS NOT NULL;
	`, municipality, priceType)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparable pool: %w", err)
	}
	defer rows.Close()

	var pool []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comparable: %w", err)
		}
		pool = append(pool, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read comparable pool: %w", err)
	}
	return pool, nil
}

func (a *ListingStorageAdapter) DeactivateStale(ctx context.Context, unseenFor time.Duration) (int64, error) {
	tag, err := a.pool.Exec(ctx, `
		UPDATE listings SET status = 'inactive'
		WHERE status = 'active' AND seen_last_at < now() - $1::interval;
	`, unseenFor.String())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (a *ListingStorageAdapter) SaveRun(ctx context.Context, run domain.IngestionRun) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO execution_log (
			id, started_at, completed_at, status,
			records_read, records_inserted, records_updated, records_unchanged,
			skipped_mapping, skipped_identity, skipped_price, record_errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`,
		run.ID, run.StartedAt, run.CompletedAt, run.Status,
		run.Metrics.Read, run.Metrics.Inserted, run.Metrics.Updated, run.Metrics.Unchanged,
		run.Metrics.SkippedMapping, run.Metrics.SkippedIdentity, run.Metrics.SkippedPrice, run.Metrics.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to save ingestion run: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawOrNil(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func valueText(v any) *string {
	if v == nil {
		return nil
	}
	s := fmt.Sprintf("%v", v)
	return &s
}
