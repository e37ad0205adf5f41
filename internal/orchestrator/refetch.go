package orchestrator

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/omicsflow/pathway-enrich/internal/enricher"
	"github.com/omicsflow/pathway-enrich/internal/layout"
	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/source"
)

// LayoutRefetcher rebuilds a pathway's layout on demand from whichever
// coordinate source knows the pathway, using the same scoring and mapping
// as enrichment. It never writes to the pathway.
type LayoutRefetcher struct {
	o     *Orchestrator
	coord *enricher.Coordinate
}

var _ layout.Refetcher = (*LayoutRefetcher)(nil)

// Refetcher returns a layout refetcher sharing o's adapters and scorer. A
// nil coord uses the default coordinate enricher settings.
func (o *Orchestrator) Refetcher(coord *enricher.Coordinate) *LayoutRefetcher {
	if coord == nil {
		if e, ok := o.enrichers.For(model.CategoryCoordinates); ok {
			coord, _ = e.(*enricher.Coordinate)
		}
	}
	if coord == nil {
		coord = enricher.NewCoordinate()
	}
	return &LayoutRefetcher{o: o, coord: coord}
}

// Refetch implements layout.Refetcher. Only sources with an entry in
// foreignIDs are queried. The best-ranked diagram that maps enough of the
// pathway wins.
func (r *LayoutRefetcher) Refetch(ctx context.Context, p model.Pathway, foreignIDs map[string]string) (*model.LayoutBlock, error) {
	var jobs []job
	for _, a := range r.o.sources.ForCategory(model.CategoryCoordinates) {
		if id := foreignIDs[a.Name()]; id != "" {
			jobs = append(jobs, job{adapter: a, category: model.CategoryCoordinates, id: id})
		}
	}
	if len(jobs) == 0 {
		return nil, eris.New("orchestrator: no coordinate source knows this pathway")
	}

	results, _, err := r.o.fetchAll(ctx, jobs, source.FetchOptions{})
	if err != nil {
		return nil, err
	}

	sc := r.o.scorer
	for _, res := range sc.Rank(sc.WithConsistency(results), nil) {
		if !res.OK() {
			continue
		}
		payload, ok := res.Payload.(*model.CoordinatePayload)
		if !ok {
			continue
		}
		build, err := r.coord.BuildLayout(p, payload, res.Source, sc.Score(res))
		if err != nil {
			zap.L().Warn("orchestrator: refetched diagram unusable",
				zap.String("source", res.Source),
				zap.Error(err),
			)
			continue
		}
		if build.Block.Empty() || build.Coverage < r.coord.Threshold() {
			zap.L().Debug("orchestrator: refetched diagram below coverage",
				zap.String("source", res.Source),
				zap.Float64("coverage", build.Coverage),
			)
			continue
		}
		return build.Block, nil
	}
	return nil, eris.New("orchestrator: no refetched diagram covers the pathway")
}
