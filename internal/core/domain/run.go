package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawRecord is a source-specific mapping of field names to values, exactly
// as the harvesting layer delivered it.
type RawRecord map[string]any

// RunStatus is the terminal state of one ingestion run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// IngestMetrics counts per-record outcomes of one run. Per-record failures
// accumulate here instead of aborting the batch.
type IngestMetrics struct {
	Read            int `json:"read"`
	Inserted        int `json:"inserted"`
	Updated         int `json:"updated"`
	Unchanged       int `json:"unchanged"`
	SkippedMapping  int `json:"skipped_mapping"`
	SkippedIdentity int `json:"skipped_identity"`
	SkippedPrice    int `json:"skipped_price"`
	Errors          int `json:"errors"`
}

// Add folds another metrics value into this one.
func (m *IngestMetrics) Add(other IngestMetrics) {
	m.Read += other.Read
	m.Inserted += other.Inserted
	m.Updated += other.Updated
	m.Unchanged += other.Unchanged
	m.SkippedMapping += other.SkippedMapping
	m.SkippedIdentity += other.SkippedIdentity
	m.SkippedPrice += other.SkippedPrice
	m.Errors += other.Errors
}

// IngestionRun is one persisted execution_log row.
type IngestionRun struct {
	ID          uuid.UUID
	StartedAt   time.Time
	CompletedAt time.Time
	Status      RunStatus
	Metrics     IngestMetrics
}
