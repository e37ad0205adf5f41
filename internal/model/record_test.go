package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() EnrichmentRecord {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return EnrichmentRecord{
		ID:        "rec-1",
		RequestID: "req-1",
		PathwayID: "glycolysis",
		CreatedAt: now,
		Categories: []CategoryRecord{
			{
				Category:           CategoryKinetics,
				WinningSource:      "biomodels",
				QueryParams:        map[string]string{"id": "BIOMD0000000001"},
				PayloadSnapshotRef: "sha256:abc",
				Score:              0.91,
				Confidence:         ConfidenceHigh,
				MergePolicy:        MergeOverrideIfBetter,
				EntitiesChanged:    2,
				ChangedEntities:    []string{"r2", "r1"},
				ChangeCounts:       map[string]int{"reaction": 2},
				FieldsTouched:      []string{"kinetics.km"},
				Citations:          []string{"doi:10.1000/xyz"},
			},
			{
				Category:        CategoryAnnotations,
				WinningSource:   "kegg",
				Score:           0.7,
				Confidence:      ConfidenceMedium,
				MergePolicy:     MergeFillOnly,
				EntitiesChanged: 1,
				ChangedEntities: []string{"r1"},
				ChangeCounts:    map[string]int{"reaction": 1},
			},
		},
		Skipped: []SkippedCategory{
			{Category: CategoryCoordinates, Kind: FailureMappingIncomplete, Reason: "coverage 0.25 below 0.30"},
		},
		Warnings: []string{"coordinates: coverage 0.25 below 0.30"},
	}
}

func TestEnrichmentRecord_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded EnrichmentRecord
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, rec.ID, decoded.ID)
	assert.Equal(t, rec.PathwayID, decoded.PathwayID)
	require.Len(t, decoded.Categories, 2)
	assert.Equal(t, "sha256:abc", decoded.Categories[0].PayloadSnapshotRef)
	assert.Equal(t, 2, decoded.Categories[0].ChangeCounts["reaction"])
	require.Len(t, decoded.Skipped, 1)
	assert.Equal(t, FailureMappingIncomplete, decoded.Skipped[0].Kind)
}

func TestEnrichmentRecord_Category(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	cr, ok := rec.Category(CategoryAnnotations)
	require.True(t, ok)
	assert.Equal(t, "kegg", cr.WinningSource)

	_, ok = rec.Category(CategoryCoordinates)
	assert.False(t, ok)
}

func TestEnrichmentRecord_ChangedEntityIDs(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	assert.Equal(t, []string{"r1", "r2"}, rec.ChangedEntityIDs())
}

func TestEnrichmentRecord_Report(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	out := rec.Report()
	assert.Contains(t, out, "pathway glycolysis")
	assert.Contains(t, out, "kinetic_parameters: biomodels (score 0.91, high, override-if-better)")
	assert.Contains(t, out, "[reaction=2]")
	assert.Contains(t, out, "cite: doi:10.1000/xyz")
	assert.Contains(t, out, "coordinates: skipped (mapping_incomplete)")
}
