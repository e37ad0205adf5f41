package enricher

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/idmap"
	"github.com/omicsflow/pathway-enrich/internal/layout"
	"github.com/omicsflow/pathway-enrich/internal/model"
)

// DefaultCoverage is the share of species that must be placed for a
// foreign diagram to be used.
const DefaultCoverage = 0.30

// Coordinate turns a foreign diagram into the pathway's layout block. It
// transforms coordinates into host convention, maps foreign ids to host
// entities, and writes the block only when enough species are placed.
type Coordinate struct {
	mapper    *idmap.Mapper
	writer    layout.Writer
	threshold float64
}

// CoordinateOption configures the coordinate enricher.
type CoordinateOption func(*Coordinate)

// WithCoverage sets the minimum species coverage.
func WithCoverage(threshold float64) CoordinateOption {
	return func(c *Coordinate) { c.threshold = threshold }
}

// WithMapper replaces the identifier mapper.
func WithMapper(m *idmap.Mapper) CoordinateOption {
	return func(c *Coordinate) { c.mapper = m }
}

// WithWriter replaces the layout writer.
func WithWriter(w layout.Writer) CoordinateOption {
	return func(c *Coordinate) { c.writer = w }
}

// NewCoordinate creates the coordinate enricher.
func NewCoordinate(opts ...CoordinateOption) *Coordinate {
	c := &Coordinate{mapper: idmap.New(), threshold: DefaultCoverage}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Threshold is the configured coverage threshold.
func (c *Coordinate) Threshold() float64 { return c.threshold }

// Category implements Enricher.
func (c *Coordinate) Category() model.Category { return model.CategoryCoordinates }

// CanEnrich implements Enricher.
func (c *Coordinate) CanEnrich(cat model.Category) bool { return cat == model.CategoryCoordinates }

// DefaultPolicy never replaces a layout the pathway already has.
func (c *Coordinate) DefaultPolicy() model.MergePolicy { return model.MergeFillOnly }

// Build is a layout computed from a coordinate payload.
type Build struct {
	Block    *model.LayoutBlock
	Mapping  *idmap.Result
	Coverage float64
	Warnings []string
}

func coordinatePayload(r model.Result) (*model.CoordinatePayload, error) {
	p, ok := r.Payload.(*model.CoordinatePayload)
	if !ok || p == nil {
		return nil, eris.Errorf("enricher: %s result carries %T, want coordinates", r.Source, r.Payload)
	}
	return p, nil
}

// coverageTargets are the entities coverage is measured against: species,
// or every entity when the pathway has none.
func coverageTargets(p model.Pathway) []model.Entity {
	if species := model.EntitiesOfKind(p, model.EntitySpecies); len(species) > 0 {
		return species
	}
	return p.Entities()
}

// BuildLayout maps and transforms a coordinate payload without touching the
// pathway. The returned block is nil when nothing could be placed.
func (c *Coordinate) BuildLayout(p model.Pathway, payload *model.CoordinatePayload, source string, score float64) (*Build, error) {
	var warnings []string
	var refs []model.ForeignRef
	usable := make(map[string]model.Placement, len(payload.Placements))
	for _, pl := range payload.Placements {
		if !pl.Finite() {
			warnings = append(warnings, fmt.Sprintf("placement %s has invalid geometry", pl.ForeignID))
			continue
		}
		if _, dup := usable[pl.ForeignID]; dup {
			continue
		}
		usable[pl.ForeignID] = pl
		refs = append(refs, pl.ForeignRef)
	}

	mapping := c.mapper.Map(refs, p.Entities())
	build := &Build{
		Mapping:  mapping,
		Coverage: mapping.Coverage(coverageTargets(p)),
	}

	canvasHeight := payload.CanvasHeight
	if canvasHeight <= 0 {
		for _, pl := range usable {
			corner := layout.ToCorner(pl, payload.Convention)
			canvasHeight = max(canvasHeight, corner.Y+corner.Height)
		}
	}

	placed := make([]layout.Placed, 0, len(mapping.Mappings))
	for _, m := range mapping.Mappings {
		box, err := layout.ToHost(usable[m.ForeignID], payload.Convention, canvasHeight)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		placed = append(placed, layout.Placed{HostID: m.HostID, Box: box})
	}
	if len(mapping.Unmapped) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d diagram elements not matched", len(mapping.Unmapped)))
	}
	build.Warnings = warnings
	if len(placed) == 0 {
		return build, nil
	}

	block, err := c.writer.Write(placed, source, score)
	if err != nil {
		return nil, err
	}
	build.Block = block
	return build, nil
}

// Validate implements Enricher. Coverage below the threshold makes the
// whole category unusable.
func (c *Coordinate) Validate(p model.Pathway, r model.Result) Validation {
	payload, err := coordinatePayload(r)
	if err != nil {
		return Invalid(model.FailureValidation, err.Error())
	}
	if len(payload.Placements) == 0 {
		return Invalid(model.FailureValidation, "diagram has no placements")
	}
	if len(p.Entities()) == 0 {
		return Invalid(model.FailureValidation, "pathway has no entities")
	}
	build, err := c.BuildLayout(p, payload, r.Source, 0)
	if err != nil {
		return Invalid(model.FailureValidation, err.Error())
	}
	if build.Block.Empty() || build.Coverage < c.threshold {
		return Invalid(model.FailureMappingIncomplete,
			fmt.Sprintf("coverage %.0f%% below %.0f%%", build.Coverage*100, c.threshold*100),
			build.Warnings...)
	}
	return Valid(build.Warnings...)
}

// Apply implements Enricher. Under fill-only an existing layout is left
// alone; under override-if-better it is replaced only when it came from a
// source with a lower score. Layouts drawn by a person are never replaced.
func (c *Coordinate) Apply(p model.Pathway, r model.Result, opts ApplyOptions) (*model.ChangeSummary, error) {
	payload, err := coordinatePayload(r)
	if err != nil {
		return nil, err
	}
	policy := PolicyFor(c, opts)
	sum := newSummary()

	if existing, ok := p.Layout(); ok && !existing.Empty() {
		replace := policy == model.MergeOverrideIfBetter && existing.Source != "" && opts.Score > existing.Score
		if !replace {
			sum.warn(fmt.Sprintf("pathway already has layout %q; left unchanged", existing.Name))
			return sum.build(), nil
		}
	}

	build, err := c.BuildLayout(p, payload, r.Source, opts.Score)
	if err != nil {
		return nil, err
	}
	if build.Block.Empty() || build.Coverage < c.threshold {
		return nil, eris.Errorf("enricher: coverage %.2f below %.2f", build.Coverage, c.threshold)
	}
	if err := p.SetLayout(build.Block); err != nil {
		return nil, eris.Wrap(err, "enricher: write layout")
	}

	for id := range build.Block.Boxes {
		e, _ := p.Entity(id)
		sum.touch(e, "layout."+build.Block.Name)
	}
	sum.extra["layout"] = 1
	for _, w := range build.Warnings {
		sum.warn(w)
	}
	return sum.build(), nil
}
