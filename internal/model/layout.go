package model

// BoundingBox is an axis-aligned box. In a LayoutBlock it is always in host
// convention: origin bottom-left, Y upward, (X,Y) the lower-left corner.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxX is the right edge.
func (b BoundingBox) MaxX() float64 { return b.X + b.Width }

// MaxY is the top edge.
func (b BoundingBox) MaxY() float64 { return b.Y + b.Height }

// Canvas is the overall drawing area.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LayoutBlock is the named container the host stores entity positions in.
type LayoutBlock struct {
	Name   string                 `json:"name"`
	Source string                 `json:"source,omitempty"`
	Score  float64                `json:"score,omitempty"`
	Canvas Canvas                 `json:"canvas"`
	Boxes  map[string]BoundingBox `json:"boxes"`
}

// Empty reports whether the block places no entity.
func (l *LayoutBlock) Empty() bool {
	return l == nil || len(l.Boxes) == 0
}

// Clone returns a deep copy.
func (l *LayoutBlock) Clone() *LayoutBlock {
	if l == nil {
		return nil
	}
	out := *l
	out.Boxes = make(map[string]BoundingBox, len(l.Boxes))
	for k, v := range l.Boxes {
		out.Boxes[k] = v
	}
	return &out
}
