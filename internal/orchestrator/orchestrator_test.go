package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsflow/pathway-enrich/internal/enricher"
	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/pathway"
	"github.com/omicsflow/pathway-enrich/internal/source"
)

type fakeAdapter struct {
	name  string
	host  string
	rel   float64
	cats  []model.Category
	delay time.Duration
	// payload builds the result for a category; nil means not found.
	payload func(c model.Category) (model.Payload, model.QualityMetrics)

	calls    atomic.Int32
	inFlight *atomic.Int32
	peak     *atomic.Int32
	lastID   atomic.Value
}

func (f *fakeAdapter) Name() string         { return f.name }
func (f *fakeAdapter) Host() string         { return f.host }
func (f *fakeAdapter) Reliability() float64 { return f.rel }

func (f *fakeAdapter) Supports(c model.Category) bool {
	for _, x := range f.cats {
		if x == c {
			return true
		}
	}
	return false
}

func (f *fakeAdapter) Fetch(ctx context.Context, id string, c model.Category, _ source.FetchOptions) model.Result {
	f.calls.Add(1)
	f.lastID.Store(id)
	if f.inFlight != nil {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.Failed(f.name, c, model.FailureCancelled, ctx.Err().Error())
		}
	}
	if f.payload == nil {
		return model.Failed(f.name, c, model.FailureNotFound, "no such pathway")
	}
	payload, q := f.payload(c)
	if payload == nil {
		return model.Failed(f.name, c, model.FailureNotFound, "no data")
	}
	q.Reliability = f.rel
	return model.Result{
		Source:   f.name,
		Category: c,
		Payload:  payload,
		Status:   model.StatusSuccess,
		Quality:  q,
		Query:    map[string]string{"id": id},
		Raw:      []byte(fmt.Sprintf(`{"source":%q,"category":%q}`, f.name, c)),
		Attribution: model.SourceAttribution{
			Source:   f.name,
			Citation: f.name + " citation",
		},
	}
}

type memRecorder struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	records   []*model.EnrichmentRecord
	links     map[string][]string
	failSave  error
}

func newRecorder() *memRecorder {
	return &memRecorder{snapshots: map[string][]byte{}, links: map[string][]string{}}
}

func (m *memRecorder) SavePayloadSnapshot(_ context.Context, ref string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[ref] = data
	return nil
}

func (m *memRecorder) SaveEnrichmentRecord(_ context.Context, rec *model.EnrichmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memRecorder) LinkRecordToPathway(_ context.Context, pathwayID, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[pathwayID] = append(m.links[pathwayID], recordID)
	return nil
}

func testPathway(t *testing.T) *pathway.Memory {
	t.Helper()
	p, err := pathway.New("glycolysis",
		model.Entity{ID: "glc", Name: "Glucose", Kind: model.EntitySpecies},
		model.Entity{ID: "g6p", Name: "Glucose 6-phosphate", Kind: model.EntitySpecies},
		model.Entity{ID: "atp", Name: "ATP", Kind: model.EntitySpecies},
		model.Entity{ID: "adp", Name: "ADP", Kind: model.EntitySpecies},
		model.Entity{ID: "R00299", Name: "hexokinase", Kind: model.EntityReaction},
	)
	require.NoError(t, err)
	return p
}

func full() model.QualityMetrics {
	return model.QualityMetrics{Completeness: 1, Validation: 1}
}

func kinetics(km float64, q model.QualityMetrics) func(model.Category) (model.Payload, model.QualityMetrics) {
	return func(model.Category) (model.Payload, model.QualityMetrics) {
		return &model.KineticPayload{Parameters: []model.KineticParameter{
			{Reaction: model.ForeignRef{ForeignID: "R00299"}, Name: "Km", Value: km, Unit: "mM"},
		}}, q
	}
}

func annotations() func(model.Category) (model.Payload, model.QualityMetrics) {
	return func(model.Category) (model.Payload, model.QualityMetrics) {
		return &model.AnnotationPayload{Entries: []model.Annotation{
			{Entity: model.ForeignRef{ForeignID: "x1", Name: "glucose"}, Qualifier: "is", Resources: []string{"CHEBI:17234"}},
			{Entity: model.ForeignRef{ForeignID: "x2", Name: "ATP"}, Qualifier: "is", Resources: []string{"CHEBI:15422"}},
		}}, full()
	}
}

func coordinates(placements ...model.Placement) func(model.Category) (model.Payload, model.QualityMetrics) {
	return func(model.Category) (model.Payload, model.QualityMetrics) {
		return &model.CoordinatePayload{
			ForeignPathwayID: "map00010",
			Convention:       model.ScreenConvention,
			CanvasWidth:      800,
			CanvasHeight:     600,
			Placements:       placements,
		}, full()
	}
}

func place(name string, x, y float64) model.Placement {
	return model.Placement{ForeignRef: model.ForeignRef{ForeignID: "f-" + name, Name: name}, X: x, Y: y, Width: 46, Height: 17}
}

var ids atomic.Int64

func newOrchestrator(rec Recorder, adapters ...source.Adapter) *Orchestrator {
	return New(
		source.NewRegistry(adapters...),
		enricher.NewRegistry(enricher.NewKinetic(nil), enricher.NewAnnotation(nil), enricher.NewCoordinate()),
		WithRecorder(rec),
		WithIDs(func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }),
	)
}

func TestRun_CompleteBeatsPartial(t *testing.T) {
	t.Parallel()

	alpha := &fakeAdapter{name: "alpha", host: "alpha.example", rel: 1.0, cats: []model.Category{model.CategoryKinetics},
		payload: kinetics(0.1, full())}
	beta := &fakeAdapter{name: "beta", host: "beta.example", rel: 0.85, cats: []model.Category{model.CategoryKinetics},
		payload: kinetics(0.5, model.QualityMetrics{Completeness: 0.5, Validation: 1})}

	p := testPathway(t)
	rec := newRecorder()
	out, err := newOrchestrator(rec, alpha, beta).Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryKinetics))
	require.NoError(t, err)

	co, ok := out.Category(model.CategoryKinetics)
	require.True(t, ok)
	assert.Equal(t, StateRecorded, co.State)
	assert.Equal(t, "alpha", co.Winner)
	assert.Equal(t, []State{StateRequested, StateFetching, StateScoring, StateSelected, StateApplying, StateRecorded}, co.History)
	require.Len(t, co.Candidates, 2)
	assert.Equal(t, "alpha", co.Candidates[0].Source)
	assert.Greater(t, co.Candidates[0].Score, co.Candidates[1].Score)

	fv, ok := p.Field("R00299", "kinetics.km")
	require.True(t, ok)
	assert.Equal(t, 0.1, fv.Value)
	assert.Equal(t, "alpha", fv.Source)
	assert.Equal(t, out.Record.ID, fv.RecordID)

	assert.Equal(t, 2, out.Stats.Fetches)
	assert.Equal(t, 2, out.Stats.Succeeded)
	assert.Equal(t, 1, out.Stats.Applied)
	assert.Equal(t, 2, out.Stats.Hosts)
}

func TestRun_SelectionIndependentOfCallOrder(t *testing.T) {
	t.Parallel()

	for _, slow := range []string{"alpha", "beta"} {
		alpha := &fakeAdapter{name: "alpha", host: "a.example", rel: 0.9, cats: []model.Category{model.CategoryKinetics},
			payload: kinetics(0.1, full())}
		beta := &fakeAdapter{name: "beta", host: "b.example", rel: 0.95, cats: []model.Category{model.CategoryKinetics},
			payload: kinetics(0.1, full())}
		if slow == "alpha" {
			alpha.delay = 30 * time.Millisecond
		} else {
			beta.delay = 30 * time.Millisecond
		}

		out, err := newOrchestrator(nil, beta, alpha).Run(context.Background(), testPathway(t), model.NewRequest("glycolysis", model.CategoryKinetics))
		require.NoError(t, err)
		co, _ := out.Category(model.CategoryKinetics)
		assert.Equal(t, "beta", co.Winner, "slow=%s", slow)
	}
}

func TestRun_BelowThresholdFailsOnlyThatCategory(t *testing.T) {
	t.Parallel()

	weak := model.QualityMetrics{Completeness: 0.2, Validation: 0.2}
	k1 := &fakeAdapter{name: "k1", host: "k1.example", rel: 0.3, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, weak)}
	k2 := &fakeAdapter{name: "k2", host: "k2.example", rel: 0.2, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, weak)}
	ann := &fakeAdapter{name: "ann", host: "ann.example", rel: 1.0, cats: []model.Category{model.CategoryAnnotations}, payload: annotations()}

	p := testPathway(t)
	rec := newRecorder()
	req := model.NewRequest("glycolysis", model.CategoryKinetics, model.CategoryAnnotations)
	req.MinQuality = 0.9
	req.AllowPartial = false

	out, err := newOrchestrator(rec, k1, k2, ann).Run(context.Background(), p, req)
	require.NoError(t, err)

	kin, _ := out.Category(model.CategoryKinetics)
	assert.Equal(t, StateFailed, kin.State)
	assert.Equal(t, model.FailureBelowThreshold, kin.Failure)
	_, ok := p.Field("R00299", "kinetics.km")
	assert.False(t, ok)

	an, _ := out.Category(model.CategoryAnnotations)
	assert.Equal(t, StateRecorded, an.State)
	assert.Equal(t, model.ConfidenceHigh, an.Confidence)

	require.NotNil(t, out.Record)
	require.Len(t, out.Record.Skipped, 1)
	assert.Equal(t, model.FailureBelowThreshold, out.Record.Skipped[0].Kind)
	assert.Equal(t, 1, out.Stats.Failed)
	assert.Equal(t, 1, out.Stats.Applied)
}

func TestRun_AllowPartialUsesBestBelowThreshold(t *testing.T) {
	t.Parallel()

	weak := model.QualityMetrics{Completeness: 0.2, Validation: 0.2}
	k1 := &fakeAdapter{name: "k1", host: "k1.example", rel: 0.3, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, weak)}

	req := model.NewRequest("glycolysis", model.CategoryKinetics)
	req.MinQuality = 0.9

	out, err := newOrchestrator(nil, k1).Run(context.Background(), testPathway(t), req)
	require.NoError(t, err)
	co, _ := out.Category(model.CategoryKinetics)
	assert.Equal(t, StateRecorded, co.State)
	assert.Equal(t, model.ConfidenceBelowThreshold, co.Confidence)
	assert.NotEmpty(t, co.Warnings)
	assert.Equal(t, model.ConfidenceBelowThreshold, out.Record.Categories[0].Confidence)
}

func TestRun_LowCoverageSkipsLayout(t *testing.T) {
	t.Parallel()

	diagram := &fakeAdapter{name: "kegg", host: "kegg.example", rel: 0.85, cats: []model.Category{model.CategoryCoordinates},
		payload: coordinates(place("Glucose", 100, 50), place("pyruvate", 300, 50), place("lactate", 400, 50))}
	ann := &fakeAdapter{name: "ann", host: "ann.example", rel: 1.0, cats: []model.Category{model.CategoryAnnotations}, payload: annotations()}

	p := testPathway(t)
	out, err := newOrchestrator(nil, diagram, ann).Run(context.Background(), p,
		model.NewRequest("glycolysis", model.CategoryCoordinates, model.CategoryAnnotations))
	require.NoError(t, err)

	co, _ := out.Category(model.CategoryCoordinates)
	assert.Equal(t, StateSkipped, co.State)
	assert.Equal(t, model.FailureMappingIncomplete, co.Failure)
	assert.Contains(t, co.Reason, "25%")
	_, ok := p.Layout()
	assert.False(t, ok)

	an, _ := out.Category(model.CategoryAnnotations)
	assert.Equal(t, StateRecorded, an.State)
	assert.Equal(t, model.FailureMappingIncomplete, out.Record.Skipped[0].Kind)
}

func TestRun_CoordinatesWriteHostConvention(t *testing.T) {
	t.Parallel()

	diagram := &fakeAdapter{name: "kegg", host: "kegg.example", rel: 0.85, cats: []model.Category{model.CategoryCoordinates},
		payload: coordinates(place("Glucose", 100, 50), place("ATP", 300, 50))}

	p := testPathway(t)
	out, err := newOrchestrator(nil, diagram).Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryCoordinates))
	require.NoError(t, err)

	co, _ := out.Category(model.CategoryCoordinates)
	require.Equal(t, StateRecorded, co.State, co.Reason)
	block, ok := p.Layout()
	require.True(t, ok)
	assert.Equal(t, model.BoundingBox{X: 100, Y: 533, Width: 46, Height: 17}, block.Boxes["glc"])
	assert.Equal(t, 1, out.Record.Categories[0].ChangeCounts["layout"])
}

func TestRun_RecordMatchesEnricherCounts(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	ann := &fakeAdapter{name: "ann", host: "ann.example", rel: 1.0, cats: []model.Category{model.CategoryAnnotations}, payload: annotations()}

	p := testPathway(t)
	rec := newRecorder()
	out, err := newOrchestrator(rec, k, ann).Run(context.Background(), p,
		model.NewRequest("glycolysis", model.CategoryKinetics, model.CategoryAnnotations))
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	saved := rec.records[0]
	assert.Same(t, out.Record, saved)
	require.Len(t, saved.Categories, 2)
	for _, cr := range saved.Categories {
		co, _ := out.Category(cr.Category)
		assert.Equal(t, co.Changes.EntitiesChanged, cr.EntitiesChanged, cr.Category)
		assert.Len(t, cr.ChangedEntities, cr.EntitiesChanged)
		assert.Contains(t, rec.snapshots, cr.PayloadSnapshotRef)
		assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, cr.PayloadSnapshotRef)
		assert.Equal(t, []string{cr.WinningSource + " citation"}, cr.Citations)
		assert.NotEmpty(t, cr.QueryParams)
	}
	assert.Equal(t, []string{saved.ID}, rec.links["glycolysis"])
	assert.Equal(t, []string{saved.ID}, p.Records())
	assert.Equal(t, 3, out.Stats.EntitiesChanged)
}

func TestRun_NoRecordWhenNothingApplied(t *testing.T) {
	t.Parallel()

	missing := &fakeAdapter{name: "m", host: "m.example", rel: 1, cats: []model.Category{model.CategoryKinetics}}
	p := testPathway(t)
	rec := newRecorder()

	out, err := newOrchestrator(rec, missing).Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryKinetics))
	require.NoError(t, err)
	co, _ := out.Category(model.CategoryKinetics)
	assert.Equal(t, StateEmpty, co.State)
	assert.Equal(t, model.FailureNotFound, co.Failure)
	assert.Nil(t, out.Record)
	assert.Empty(t, rec.records)
	assert.Empty(t, p.Records())
}

func TestRun_ReEnrichmentCreatesNewRecord(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 0.9, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	better := &fakeAdapter{name: "better", host: "b.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.2, full())}

	p := testPathway(t)
	rec := newRecorder()
	_, err := newOrchestrator(rec, k).Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryKinetics))
	require.NoError(t, err)
	_, err = newOrchestrator(rec, better).Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryKinetics))
	require.NoError(t, err)

	require.Len(t, rec.records, 2)
	assert.NotEqual(t, rec.records[0].ID, rec.records[1].ID)
	assert.Len(t, p.Records(), 2)
	fv, _ := p.Field("R00299", "kinetics.km")
	assert.Equal(t, "better", fv.Source)
}

type panicky struct{ enricher.Enricher }

func (p panicky) Apply(pw model.Pathway, _ model.Result, _ enricher.ApplyOptions) (*model.ChangeSummary, error) {
	_ = pw.SetField("glc", "annotation.is", model.FieldValue{Value: "half-written", Source: "ann"})
	panic("boom")
}

func TestRun_PanicRollsBack(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	ann := &fakeAdapter{name: "ann", host: "ann.example", rel: 1.0, cats: []model.Category{model.CategoryAnnotations}, payload: annotations()}

	o := New(
		source.NewRegistry(k, ann),
		enricher.NewRegistry(enricher.NewKinetic(nil), panicky{enricher.NewAnnotation(nil)}),
	)
	p := testPathway(t)
	out, err := o.Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryKinetics, model.CategoryAnnotations))
	require.NoError(t, err)

	an, _ := out.Category(model.CategoryAnnotations)
	assert.Equal(t, StateFailed, an.State)
	assert.Equal(t, model.FailureApplication, an.Failure)
	assert.Contains(t, an.Reason, "boom")
	_, ok := p.Field("glc", "annotation.is")
	assert.False(t, ok, "partial write must be rolled back")

	kin, _ := out.Category(model.CategoryKinetics)
	assert.Equal(t, StateRecorded, kin.State)
}

func TestRun_CancelAppliesNothing(t *testing.T) {
	t.Parallel()

	slow := &fakeAdapter{name: "slow", host: "slow.example", rel: 1, cats: []model.Category{model.CategoryKinetics},
		delay: 5 * time.Second, payload: kinetics(0.1, full())}
	fast := &fakeAdapter{name: "fast", host: "fast.example", rel: 1, cats: []model.Category{model.CategoryAnnotations}, payload: annotations()}

	p := testPathway(t)
	rec := newRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	out, err := newOrchestrator(rec, slow, fast).Run(ctx, p, model.NewRequest("glycolysis", model.CategoryKinetics, model.CategoryAnnotations))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, out)
	assert.Empty(t, p.Document().Fields)
	assert.Empty(t, rec.records)
}

func TestRun_ConcurrencyBoundedByHosts(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	mk := func(name, host string) *fakeAdapter {
		return &fakeAdapter{name: name, host: host, rel: 1, cats: []model.Category{model.CategoryKinetics},
			delay: 20 * time.Millisecond, payload: kinetics(0.1, full()), inFlight: &inFlight, peak: &peak}
	}

	o := newOrchestrator(nil, mk("a", "shared"), mk("b", "shared"), mk("c", "shared"), mk("d", "other"))
	out, err := o.Run(context.Background(), testPathway(t), model.NewRequest("glycolysis", model.CategoryKinetics))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Stats.Hosts)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 4, out.Stats.Fetches)
}

func TestRun_RequestErrors(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	o := newOrchestrator(nil, k)
	p := testPathway(t)

	_, err := o.Run(context.Background(), p, model.EnrichmentRequest{PathwayID: "glycolysis"})
	require.Error(t, err)

	_, err = o.Run(context.Background(), p, model.NewRequest("other", model.CategoryKinetics))
	require.Error(t, err)

	_, err = o.Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryCoordinates))
	assert.ErrorIs(t, err, ErrNoSources)

	req := model.NewRequest("glycolysis", model.CategoryKinetics)
	req.ExcludedSources = []string{"k"}
	_, err = o.Run(context.Background(), p, req)
	assert.ErrorIs(t, err, ErrNoSources)
	assert.Zero(t, k.calls.Load())
}

func TestRun_UnservedCategoryIsEmpty(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	out, err := newOrchestrator(nil, k).Run(context.Background(), testPathway(t),
		model.NewRequest("glycolysis", model.CategoryKinetics, model.CategoryCoordinates))
	require.NoError(t, err)

	co, _ := out.Category(model.CategoryCoordinates)
	assert.Equal(t, StateEmpty, co.State)
	assert.Equal(t, model.FailureSourceUnavailable, co.Failure)
	assert.Equal(t, []model.Category{model.CategoryKinetics}, out.Applied())
}

func TestRun_ForeignIDs(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	p := testPathway(t)
	p.SetCrossReference("k", "K-123")

	_, err := newOrchestrator(nil, k).Run(context.Background(), p, model.NewRequest("glycolysis", model.CategoryKinetics))
	require.NoError(t, err)
	assert.Equal(t, "K-123", k.lastID.Load())

	req := model.NewRequest("glycolysis", model.CategoryKinetics)
	req.ForeignIDs = map[string]string{"k": "K-999"}
	_, err = newOrchestrator(nil, k).Run(context.Background(), p, req)
	require.NoError(t, err)
	assert.Equal(t, "K-999", k.lastID.Load())
}

func TestRun_RecorderFailure(t *testing.T) {
	t.Parallel()

	k := &fakeAdapter{name: "k", host: "k.example", rel: 1, cats: []model.Category{model.CategoryKinetics}, payload: kinetics(0.1, full())}
	rec := newRecorder()
	rec.failSave = errors.New("disk full")

	out, err := newOrchestrator(rec, k).Run(context.Background(), testPathway(t), model.NewRequest("glycolysis", model.CategoryKinetics))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, out)
	assert.Nil(t, out.Record)
}

func TestRefetcher(t *testing.T) {
	t.Parallel()

	diagram := &fakeAdapter{name: "kegg", host: "kegg.example", rel: 0.85, cats: []model.Category{model.CategoryCoordinates},
		payload: coordinates(place("Glucose", 100, 50), place("ATP", 300, 50))}
	o := newOrchestrator(nil, diagram)
	r := o.Refetcher(nil)
	p := testPathway(t)

	_, err := r.Refetch(context.Background(), p, nil)
	require.Error(t, err)
	assert.Zero(t, diagram.calls.Load())

	block, err := r.Refetch(context.Background(), p, map[string]string{"kegg": "map00010"})
	require.NoError(t, err)
	assert.Equal(t, "kegg", block.Source)
	assert.Len(t, block.Boxes, 2)
	assert.Equal(t, "map00010", diagram.lastID.Load())
	_, ok := p.Layout()
	assert.False(t, ok, "refetch must not write")

	sparse := &fakeAdapter{name: "kegg", host: "kegg.example", rel: 0.85, cats: []model.Category{model.CategoryCoordinates},
		payload: coordinates(place("Glucose", 100, 50))}
	_, err = newOrchestrator(nil, sparse).Refetcher(nil).Refetch(context.Background(), p, map[string]string{"kegg": "map00010"})
	require.Error(t, err)
}
