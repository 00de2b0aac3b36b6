package domain

import (
	"bytes"
	"math"
	"strings"
	"time"
)

// Merge folds an incoming observation into the stored listing. Non-null
// incoming values overwrite stored ones (source freshness wins);
// seen_first_at keeps the minimum observed timestamp and seen_last_at is
// always bumped to now. Returns the merged listing and the set of fields
// whose value actually changed, so unchanged re-observations stay cheap
// no-ops beyond the timestamp bump.
func Merge(stored, incoming *Listing, now time.Time) (*Listing, []FieldChange) {
	merged := *stored
	var changes []FieldChange

	text := func(field string, dst *string, in string, cat ChangeCategory) {
		in = strings.TrimSpace(in)
		if in == "" || in == *dst {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: emptyToNil(*dst), New: in, Category: cat})
		*dst = in
	}
	number := func(field string, dst **float64, in *float64, cat ChangeCategory) {
		if in == nil {
			return
		}
		if *dst != nil && round2(**dst) == round2(*in) {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: floatOrNil(*dst), New: *in, Category: cat})
		v := *in
		*dst = &v
	}
	count := func(field string, dst **int, in *int, cat ChangeCategory) {
		if in == nil {
			return
		}
		if *dst != nil && **dst == *in {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: intOrNil(*dst), New: *in, Category: cat})
		v := *in
		*dst = &v
	}
	blob := func(field string, dst *[]byte, in []byte) {
		if len(in) == 0 || bytes.Equal(*dst, in) {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: string(*dst), New: string(in), Category: ChangeMetadata})
		*dst = in
	}

	if incoming.Status != "" && incoming.Status != merged.Status {
		changes = append(changes, FieldChange{Field: "status", Old: string(merged.Status), New: string(incoming.Status), Category: ChangeStatus})
		merged.Status = incoming.Status
	}
	if incoming.PriceType != "" && incoming.PriceType != PriceTypeUnknown && incoming.PriceType != merged.PriceType {
		changes = append(changes, FieldChange{Field: "price_type", Old: string(merged.PriceType), New: string(incoming.PriceType), Category: ChangeContent})
		merged.PriceType = incoming.PriceType
	}
	number("price_amount", &merged.PriceAmount, incoming.PriceAmount, ChangePrice)
	text("currency", &merged.Currency, incoming.Currency, ChangeContent)
	number("maintenance_fee", &merged.MaintenanceFee, incoming.MaintenanceFee, ChangeContent)

	text("property_type", &merged.PropertyType, incoming.PropertyType, ChangeContent)
	number("area_construction_m2", &merged.AreaConstructionM2, incoming.AreaConstructionM2, ChangeContent)
	number("area_land_m2", &merged.AreaLandM2, incoming.AreaLandM2, ChangeContent)
	count("bedrooms", &merged.Bedrooms, incoming.Bedrooms, ChangeContent)
	number("bathrooms", &merged.Bathrooms, incoming.Bathrooms, ChangeContent)
	number("half_bathrooms", &merged.HalfBathrooms, incoming.HalfBathrooms, ChangeContent)
	count("parking", &merged.Parking, incoming.Parking, ChangeContent)
	count("floors", &merged.Floors, incoming.Floors, ChangeContent)
	count("age_years", &merged.AgeYears, incoming.AgeYears, ChangeContent)

	text("title", &merged.Title, incoming.Title, ChangeContent)
	text("description", &merged.Description, incoming.Description, ChangeContent)

	text("street", &merged.Street, incoming.Street, ChangeLocation)
	text("colony", &merged.Colony, incoming.Colony, ChangeLocation)
	text("municipality", &merged.Municipality, incoming.Municipality, ChangeLocation)
	text("state", &merged.State, incoming.State, ChangeLocation)
	text("country", &merged.Country, incoming.Country, ChangeLocation)
	text("postal_code", &merged.PostalCode, incoming.PostalCode, ChangeLocation)
	number("lat", &merged.Lat, incoming.Lat, ChangeLocation)
	number("lng", &merged.Lng, incoming.Lng, ChangeLocation)
	if incoming.GeoPrecision != "" && incoming.GeoPrecision != GeoUnknown && incoming.GeoPrecision != merged.GeoPrecision {
		changes = append(changes, FieldChange{Field: "geo_precision", Old: string(merged.GeoPrecision), New: string(incoming.GeoPrecision), Category: ChangeLocation})
		merged.GeoPrecision = incoming.GeoPrecision
	}

	var imagesJSON, contactJSON, amenitiesJSON, detailsJSON, rawJSON []byte
	imagesJSON, contactJSON = merged.ImagesJSON, merged.ContactJSON
	amenitiesJSON, detailsJSON, rawJSON = merged.AmenitiesJSON, merged.DetailsJSON, merged.RawJSON
	blob("images_json", &imagesJSON, incoming.ImagesJSON)
	blob("contact_json", &contactJSON, incoming.ContactJSON)
	blob("amenities_json", &amenitiesJSON, incoming.AmenitiesJSON)
	blob("details_json", &detailsJSON, incoming.DetailsJSON)
	// raw_json is refreshed silently; the full payload is preservation, not
	// a market event worth a history row.
	if len(incoming.RawJSON) > 0 {
		rawJSON = incoming.RawJSON
	}
	merged.ImagesJSON, merged.ContactJSON = imagesJSON, contactJSON
	merged.AmenitiesJSON, merged.DetailsJSON, merged.RawJSON = amenitiesJSON, detailsJSON, rawJSON

	text("source_listing_id", &merged.SourceListingID, incoming.SourceListingID, ChangeMetadata)
	text("url", &merged.URL, incoming.URL, ChangeMetadata)
	if incoming.URLNormalized != "" {
		merged.URLNormalized = incoming.URLNormalized
		merged.URLHash = incoming.URLHash
	}
	if incoming.FingerprintHash != "" {
		merged.FingerprintHash = incoming.FingerprintHash
	}
	if incoming.ParseVersion != "" {
		merged.ParseVersion = incoming.ParseVersion
	}

	// Source-claimed timestamps: first-seen keeps the minimum, last-seen the
	// maximum. The source's own clock is untrusted, so these never touch the
	// pipeline-observed pair.
	merged.SourceFirstSeenAt = minTime(merged.SourceFirstSeenAt, incoming.SourceFirstSeenAt)
	merged.SourceLastSeenAt = maxTime(merged.SourceLastSeenAt, incoming.SourceLastSeenAt)

	if !incoming.SeenFirstAt.IsZero() && incoming.SeenFirstAt.Before(merged.SeenFirstAt) {
		merged.SeenFirstAt = incoming.SeenFirstAt
	}
	merged.SeenLastAt = now

	return &merged, changes
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func intOrNil(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func minTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Before(*a) {
		return b
	}
	return a
}

func maxTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}
