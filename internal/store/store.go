// Package store persists enrichment records, the payload snapshots they
// reference, and which records belong to which pathway.
package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// ErrNotFound is returned when a record or snapshot does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for enrichment records.
type Store interface {
	// Snapshots are content addressed; saving the same ref twice is a no-op.
	SavePayloadSnapshot(ctx context.Context, ref string, data []byte) error
	GetPayloadSnapshot(ctx context.Context, ref string) ([]byte, error)

	// Records are immutable once saved; saving an existing id is a no-op.
	SaveEnrichmentRecord(ctx context.Context, rec *model.EnrichmentRecord) error
	LinkRecordToPathway(ctx context.Context, pathwayID, recordID string) error
	GetRecord(ctx context.Context, id string) (*model.EnrichmentRecord, error)
	// ListRecords returns the records linked to pathwayID, newest first. An
	// empty pathwayID lists every record.
	ListRecords(ctx context.Context, pathwayID string) ([]model.EnrichmentRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var changeColumns = []string{"record_id", "category", "entity_id", "source", "score"}

// changeRows flattens a record into one row per changed entity per category.
func changeRows(rec *model.EnrichmentRecord) [][]any {
	var rows [][]any
	for _, cr := range rec.Categories {
		ids := append([]string(nil), cr.ChangedEntities...)
		sort.Strings(ids)
		for _, id := range ids {
			rows = append(rows, []any{rec.ID, string(cr.Category), id, cr.WinningSource, cr.Score})
		}
	}
	return rows
}

func validateRecord(rec *model.EnrichmentRecord) error {
	if rec == nil || rec.ID == "" {
		return eris.New("store: record id is required")
	}
	if rec.PathwayID == "" {
		return eris.Errorf("store: record %s has no pathway id", rec.ID)
	}
	return nil
}

func decodeRecord(body []byte) (*model.EnrichmentRecord, error) {
	var rec model.EnrichmentRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	return &rec, nil
}
