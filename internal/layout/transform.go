// Package layout converts foreign diagram coordinates into the host's layout
// block and resolves a pathway's layout through tiered fallbacks.
package layout

import (
	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// ScreenToCartesian converts a box corner from screen space (origin
// top-left, Y down) into host space (origin bottom-left, Y up). y is the
// box's top edge on screen, h its height, and canvasHeight the height of
// the drawing. The returned y is the box's bottom edge in host space.
func ScreenToCartesian(x, y, h, canvasHeight float64) (float64, float64) {
	return x, canvasHeight - y - h
}

// CartesianToScreen is the inverse of ScreenToCartesian. The mapping is its
// own inverse.
func CartesianToScreen(x, y, h, canvasHeight float64) (float64, float64) {
	return x, canvasHeight - y - h
}

// ToCorner rewrites a center-anchored placement so that (X,Y) is the box's
// corner nearest the origin, whichever corner that is.
func ToCorner(p model.Placement, conv model.Convention) model.Placement {
	if conv.Anchor != model.AnchorCenter {
		return p
	}
	p.X -= p.Width / 2
	p.Y -= p.Height / 2
	return p
}

// ToHost converts one placement into a host bounding box.
func ToHost(p model.Placement, conv model.Convention, canvasHeight float64) (model.BoundingBox, error) {
	if !p.Finite() {
		return model.BoundingBox{}, eris.Errorf("layout: placement %q has non-finite coordinates", p.ForeignID)
	}
	p = ToCorner(p, conv)
	x, y := p.X, p.Y
	switch conv.Origin {
	case model.OriginTopLeft, "":
		x, y = ScreenToCartesian(p.X, p.Y, p.Height, canvasHeight)
	case model.OriginBottomLeft:
	default:
		return model.BoundingBox{}, eris.Errorf("layout: unknown origin %q", conv.Origin)
	}
	return model.BoundingBox{X: x, Y: y, Width: p.Width, Height: p.Height}, nil
}

// FromHost converts a host bounding box back into a top-left, corner
// anchored placement on a canvas of the given height.
func FromHost(b model.BoundingBox, canvasHeight float64) model.Placement {
	x, y := CartesianToScreen(b.X, b.Y, b.Height, canvasHeight)
	return model.Placement{X: x, Y: y, Width: b.Width, Height: b.Height}
}
