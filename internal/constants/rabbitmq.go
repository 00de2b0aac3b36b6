package constants

// Queue names
const (
	QueueRawListings       = "raw_listings"
	QueueValuationRequests = "valuation_requests"
)

// Exchanges
const (
	ScraperExchange   = "scraper_exchange"
	ValuationExchange = "valuation_exchange"
)

// Routing keys
const (
	RoutingKeyRawListings       = "listings.raw.ingest"
	RoutingKeyValuationRequests = "valuation.request"
	RoutingKeyValuationResults  = "valuation.result"
)

const (
	RawListingsFinalDLXExchange   = "raw_listings_final_dlx"
	RawListingsFinalDLQ           = "raw_listings_final_dlq"
	RawListingsFinalDLQRoutingKey = "listings.dlq.key"

	ValuationFinalDLXExchange   = "valuation_requests_final_dlx"
	ValuationFinalDLQ           = "valuation_requests_final_dlq"
	ValuationFinalDLQRoutingKey = "valuation.dlq.key"
)
