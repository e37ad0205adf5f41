package layout

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// BlockName is the name of the layout block written by enrichment.
const BlockName = "enrichment_layout"

// Placed is a host entity with its box already in host convention.
type Placed struct {
	HostID string
	Box    model.BoundingBox
}

// Writer serializes placed boxes into a layout block.
type Writer struct {
	// Name overrides BlockName.
	Name string
}

// Write builds a layout block from boxes. The canvas is the union of all
// boxes; if any box reaches below or left of the origin, every box is
// shifted so the layout sits in the first quadrant.
func (w Writer) Write(placed []Placed, source string, score float64) (*model.LayoutBlock, error) {
	if len(placed) == 0 {
		return nil, eris.New("layout: nothing to write")
	}

	name := w.Name
	if name == "" {
		name = BlockName
	}

	bounds := geom.NewBounds(geom.XY)
	for _, p := range placed {
		bounds.Extend(boxPolygon(p.Box))
	}
	dx := -min(0, bounds.Min(0))
	dy := -min(0, bounds.Min(1))

	block := &model.LayoutBlock{
		Name:   name,
		Source: source,
		Score:  score,
		Canvas: model.Canvas{
			Width:  bounds.Max(0) + dx,
			Height: bounds.Max(1) + dy,
		},
		Boxes: make(map[string]model.BoundingBox, len(placed)),
	}
	for _, p := range placed {
		b := p.Box
		b.X += dx
		b.Y += dy
		block.Boxes[p.HostID] = b
	}
	return block, nil
}

// Bounds returns the union of a block's boxes as (minX, minY, maxX, maxY).
func Bounds(block *model.LayoutBlock) (float64, float64, float64, float64) {
	if block.Empty() {
		return 0, 0, 0, 0
	}
	bounds := geom.NewBounds(geom.XY)
	for _, b := range block.Boxes {
		bounds.Extend(boxPolygon(b))
	}
	return bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1)
}

func boxPolygon(b model.BoundingBox) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		b.X, b.Y,
		b.MaxX(), b.Y,
		b.MaxX(), b.MaxY(),
		b.X, b.MaxY(),
		b.X, b.Y,
	}, []int{10})
}
