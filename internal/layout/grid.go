package layout

import (
	"math"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// GridBlockName names blocks produced by the grid layout.
const GridBlockName = "grid_layout"

// Grid is a deterministic row-major layout for entities without a position.
type Grid struct {
	Columns    int
	CellWidth  float64
	CellHeight float64
	BoxWidth   float64
	BoxHeight  float64
}

// DefaultGrid returns a grid sized for typical species glyphs.
func DefaultGrid() Grid {
	return Grid{CellWidth: 120, CellHeight: 60, BoxWidth: 80, BoxHeight: 30}
}

// AutoLayout places every species and reaction that has no box in existing.
// Existing boxes are copied unchanged and new rows start above them. With
// Columns zero the grid is roughly square.
func (g Grid) AutoLayout(p model.Pathway, existing *model.LayoutBlock) *model.LayoutBlock {
	block := existing.Clone()
	if block == nil {
		block = &model.LayoutBlock{Name: GridBlockName, Boxes: map[string]model.BoundingBox{}}
	}
	if block.Boxes == nil {
		block.Boxes = map[string]model.BoundingBox{}
	}

	var todo []model.Entity
	for _, e := range p.Entities() {
		if _, placed := block.Boxes[e.ID]; !placed {
			todo = append(todo, e)
		}
	}
	if len(todo) == 0 {
		return block
	}

	cols := g.Columns
	if cols <= 0 {
		cols = int(math.Ceil(math.Sqrt(float64(len(todo)))))
	}
	rows := (len(todo) + cols - 1) / cols

	var baseY float64
	if len(block.Boxes) > 0 {
		_, _, _, maxY := Bounds(block)
		baseY = maxY
	}

	padX := (g.CellWidth - g.BoxWidth) / 2
	padY := (g.CellHeight - g.BoxHeight) / 2
	for i, e := range todo {
		col, row := i%cols, i/cols
		// Fill from the top row down so reading order matches entity order.
		y := baseY + float64(rows-1-row)*g.CellHeight + padY
		block.Boxes[e.ID] = model.BoundingBox{
			X:      float64(col)*g.CellWidth + padX,
			Y:      y,
			Width:  g.BoxWidth,
			Height: g.BoxHeight,
		}
	}

	block.Canvas = model.Canvas{
		Width:  max(block.Canvas.Width, float64(cols)*g.CellWidth),
		Height: max(block.Canvas.Height, baseY+float64(rows)*g.CellHeight),
	}
	return block
}
