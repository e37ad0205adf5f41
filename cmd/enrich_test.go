package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/orchestrator"
	"github.com/omicsflow/pathway-enrich/internal/pathway"
)

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"kegg=map00010", " wikipathways = WP534 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"kegg": "map00010", "wikipathways": "WP534"}, got)

	got, err = parsePairs(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"kegg", "=map00010", "kegg="} {
		_, err := parsePairs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBuildRequest_Defaults(t *testing.T) {
	useTestConfig(t)
	cfg.Enrichment.MinQuality = 0.25
	cfg.Enrichment.Organism = "Homo sapiens"

	req, err := buildRequest("glycolysis", requestFlags{})
	require.NoError(t, err)
	assert.Equal(t, "glycolysis", req.PathwayID)
	assert.Equal(t, model.AllCategories(), req.Categories)
	assert.InDelta(t, 0.25, req.MinQuality, 1e-9)
	assert.True(t, req.AllowPartial)
	assert.Equal(t, "Homo sapiens", req.Organism)
}

func TestBuildRequest_Overrides(t *testing.T) {
	useTestConfig(t)

	q := 0.7
	partial := false
	req, err := buildRequest("glycolysis", requestFlags{
		Categories:   []string{"coordinates,annotations"},
		Prefer:       []string{"kegg"},
		Exclude:      []string{"sabiork"},
		MinQuality:   &q,
		AllowPartial: &partial,
		Merge:        map[string]string{"coordinates": "override-if-better"},
		ForeignIDs:   map[string]string{"kegg": "map00010"},
		Organism:     "Mus musculus",
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Category{model.CategoryCoordinates, model.CategoryAnnotations}, req.Categories)
	assert.Equal(t, []string{"kegg"}, req.PreferredSources)
	assert.Equal(t, []string{"sabiork"}, req.ExcludedSources)
	assert.InDelta(t, 0.7, req.MinQuality, 1e-9)
	assert.False(t, req.AllowPartial)
	assert.Equal(t, model.MergeOverrideIfBetter, req.MergePolicies[model.CategoryCoordinates])
	assert.Equal(t, "map00010", req.ForeignIDs["kegg"])
	assert.Equal(t, "Mus musculus", req.Organism)
}

func TestBuildRequest_Invalid(t *testing.T) {
	useTestConfig(t)

	q := 1.5
	_, err := buildRequest("glycolysis", requestFlags{MinQuality: &q})
	assert.Error(t, err)

	_, err = buildRequest("glycolysis", requestFlags{Categories: []string{"pathways"}})
	assert.Error(t, err)

	_, err = buildRequest("", requestFlags{})
	assert.Error(t, err)
}

func TestRunEnrich_WritesPathwayAndRecord(t *testing.T) {
	useTestConfig(t)
	src := &annotationSource{}
	env := newTestEnv(t, src)

	dir := t.TempDir()
	in := writeTestPathway(t, dir, "glycolysis")
	out := filepath.Join(dir, "enriched.json")

	res, err := runEnrich(context.Background(), env, in, out, requestFlags{Categories: []string{"annotations"}})
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, int32(1), src.calls.Load())

	p, err := pathway.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{res.Record.ID}, p.Records())

	// The input is left alone when --out points elsewhere.
	orig, err := pathway.ReadFile(in)
	require.NoError(t, err)
	assert.Empty(t, orig.Records())

	saved, err := env.Store.GetRecord(context.Background(), res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "glycolysis", saved.PathwayID)
	assert.Equal(t, []string{"atp", "glc"}, saved.ChangedEntityIDs())
}

func TestRunEnrich_NoSourceLeavesFileUntouched(t *testing.T) {
	useTestConfig(t)
	env := newTestEnv(t, &annotationSource{})

	dir := t.TempDir()
	in := writeTestPathway(t, dir, "glycolysis")
	out := filepath.Join(dir, "enriched.json")

	// The only source serves annotations, so nothing can attempt kinetics.
	_, err := runEnrich(context.Background(), env, in, out, requestFlags{Categories: []string{"kinetic_parameters"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, orchestrator.ErrNoSources))
	assert.NoFileExists(t, out)
}

func TestRunEnrich_MissingFile(t *testing.T) {
	useTestConfig(t)
	env := newTestEnv(t, &annotationSource{})

	_, err := runEnrich(context.Background(), env, filepath.Join(t.TempDir(), "nope.json"), "", requestFlags{})
	assert.Error(t, err)
}

func TestFormatOutcome(t *testing.T) {
	out := &orchestrator.Outcome{
		PathwayID: "glycolysis",
		Categories: []*orchestrator.CategoryOutcome{
			{
				Category:   model.CategoryAnnotations,
				State:      orchestrator.StateRecorded,
				Winner:     "wikipathways",
				Score:      0.91,
				Confidence: model.ConfidenceHigh,
				Changes:    &model.ChangeSummary{EntitiesChanged: 2},
			},
			{
				Category: model.CategoryKinetics,
				State:    orchestrator.StateFailed,
				Failure:  model.FailureNotFound,
				Reason:   "no source had data",
			},
		},
		Stats:    orchestrator.Stats{Fetches: 3, Succeeded: 1, NotFound: 2, Hosts: 2},
		Duration: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	formatOutcome(&buf, out)
	s := buf.String()

	assert.Contains(t, s, "CATEGORY")
	assert.Contains(t, s, "annotations")
	assert.Contains(t, s, "wikipathways")
	assert.Contains(t, s, "0.91")
	assert.Contains(t, s, "RECORDED")
	assert.Contains(t, s, "no source had data")
	assert.Contains(t, s, "3 fetches (1 ok, 2 not found, 0 errors) across 2 hosts in 1.5s")
}
