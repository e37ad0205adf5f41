package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omicsflow/pathway-enrich/internal/config"
	"github.com/omicsflow/pathway-enrich/internal/enricher"
	"github.com/omicsflow/pathway-enrich/internal/layout"
	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/orchestrator"
	"github.com/omicsflow/pathway-enrich/internal/pathway"
	"github.com/omicsflow/pathway-enrich/internal/source"
	"github.com/omicsflow/pathway-enrich/internal/store"
)

// annotationSource always answers with ChEBI terms for glucose and ATP.
type annotationSource struct {
	calls atomic.Int32
}

func (a *annotationSource) Name() string         { return "fake" }
func (a *annotationSource) Host() string         { return "fake.example" }
func (a *annotationSource) Reliability() float64 { return 0.9 }

func (a *annotationSource) Supports(c model.Category) bool {
	return c == model.CategoryAnnotations
}

func (a *annotationSource) Fetch(_ context.Context, id string, c model.Category, _ source.FetchOptions) model.Result {
	a.calls.Add(1)
	return model.Result{
		Source:   a.Name(),
		Category: c,
		Status:   model.StatusSuccess,
		Payload: &model.AnnotationPayload{Entries: []model.Annotation{
			{Entity: model.ForeignRef{ForeignID: "s1", Name: "glucose"}, Qualifier: "is", Resources: []string{"CHEBI:17234"}},
			{Entity: model.ForeignRef{ForeignID: "s2", Name: "ATP"}, Qualifier: "is", Resources: []string{"CHEBI:15422"}},
		}},
		Quality:     model.QualityMetrics{Completeness: 1, Reliability: 0.9, Validation: 1},
		Query:       map[string]string{"id": id},
		Raw:         []byte(`{"annotations":2}`),
		Attribution: model.SourceAttribution{Source: a.Name(), Citation: "fake citation"},
	}
}

var testIDs atomic.Int64

// useTestConfig installs a config with the loader defaults for the test.
func useTestConfig(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	c, err := config.Load()
	require.NoError(t, err)
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

// newTestEnv wires the engine around a temp SQLite store and one fake
// annotation source.
func newTestEnv(t *testing.T, src source.Adapter) *enrichEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	orch := orchestrator.New(
		source.NewRegistry(src),
		enricher.NewRegistry(enricher.NewKinetic(nil), enricher.NewAnnotation(nil), enricher.NewCoordinate()),
		orchestrator.WithRecorder(st),
		orchestrator.WithIDs(func() string { return fmt.Sprintf("rec-%d", testIDs.Add(1)) }),
	)
	return &enrichEnv{
		Store:        st,
		Orchestrator: orch,
		Resolver:     layout.NewResolver(orch.Refetcher(nil), nil),
	}
}

// writeTestPathway saves a small glycolysis fragment as dir/<id>.json.
func writeTestPathway(t *testing.T, dir, id string) string {
	t.Helper()
	p, err := pathway.New(id,
		model.Entity{ID: "glc", Name: "Glucose", Kind: model.EntitySpecies},
		model.Entity{ID: "atp", Name: "ATP", Kind: model.EntitySpecies},
		model.Entity{ID: "R00299", Name: "hexokinase", Kind: model.EntityReaction},
	)
	require.NoError(t, err)
	path := filepath.Join(dir, id+".json")
	require.NoError(t, p.WriteFile(path))
	return path
}
