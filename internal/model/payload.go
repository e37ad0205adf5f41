package model

import (
	"math"
	"strings"
)

// ForeignRef identifies an item in a source's own namespace.
type ForeignRef struct {
	ForeignID string   `json:"foreign_id"`
	Name      string   `json:"name,omitempty"`
	XRefs     []string `json:"xrefs,omitempty"`
}

// KineticParameter is one measured kinetic constant.
type KineticParameter struct {
	Reaction    ForeignRef `json:"reaction"`
	Name        string     `json:"name"` // km, kcat, vmax, ki, ...
	Value       float64    `json:"value"`
	Unit        string     `json:"unit,omitempty"`
	Substrate   string     `json:"substrate,omitempty"`
	Organism    string     `json:"organism,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	PH          *float64   `json:"ph,omitempty"`
	ECNumber    string     `json:"ec_number,omitempty"`
}

// KineticPayload carries kinetic parameters for reactions.
type KineticPayload struct {
	Parameters []KineticParameter `json:"parameters"`
}

// Category implements Payload.
func (p *KineticPayload) Category() Category { return CategoryKinetics }

// Len implements Payload.
func (p *KineticPayload) Len() int { return len(p.Parameters) }

// Facts keys each parameter by reaction and parameter name.
func (p *KineticPayload) Facts() map[string]float64 {
	facts := make(map[string]float64, len(p.Parameters))
	for _, kp := range p.Parameters {
		key := factKey(kp.Reaction) + "/" + strings.ToLower(kp.Name)
		facts[key] = kp.Value
	}
	return facts
}

// Origin is where a coordinate system puts (0,0).
type Origin string

const (
	OriginTopLeft    Origin = "top-left"
	OriginBottomLeft Origin = "bottom-left"
)

// Anchor is which point of a box the (x,y) pair refers to.
type Anchor string

const (
	AnchorCorner Anchor = "corner"
	AnchorCenter Anchor = "center"
)

// Convention describes a source's 2-D coordinate system.
type Convention struct {
	Origin Origin `json:"origin"`
	Anchor Anchor `json:"anchor"`
}

// ScreenConvention is the common top-left, corner-anchored screen space.
var ScreenConvention = Convention{Origin: OriginTopLeft, Anchor: AnchorCorner}

// Placement is one entity's box in the source's native convention.
type Placement struct {
	ForeignRef
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Finite reports whether every coordinate is a finite number and the size
// is non-negative.
func (p Placement) Finite() bool {
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Width >= 0 && p.Height >= 0
}

// CoordinatePayload carries a foreign diagram's entity placements.
type CoordinatePayload struct {
	ForeignPathwayID string      `json:"foreign_pathway_id"`
	Convention       Convention  `json:"convention"`
	CanvasWidth      float64     `json:"canvas_width"`
	CanvasHeight     float64     `json:"canvas_height"`
	Placements       []Placement `json:"placements"`
}

// Category implements Payload.
func (p *CoordinatePayload) Category() Category { return CategoryCoordinates }

// Len implements Payload.
func (p *CoordinatePayload) Len() int { return len(p.Placements) }

// Facts records which entities are placed. Positions from different
// diagrams are not comparable, so only presence is reported.
func (p *CoordinatePayload) Facts() map[string]float64 {
	facts := make(map[string]float64, len(p.Placements))
	for _, pl := range p.Placements {
		facts[factKey(pl.ForeignRef)] = 1
	}
	return facts
}

// Annotation is a set of controlled-vocabulary resources for one entity.
type Annotation struct {
	Entity    ForeignRef `json:"entity"`
	Qualifier string     `json:"qualifier"` // is, isVersionOf, isDescribedBy, ...
	Resources []string   `json:"resources"`
	Notes     string     `json:"notes,omitempty"`
}

// AnnotationPayload carries annotations for entities.
type AnnotationPayload struct {
	Entries []Annotation `json:"entries"`
}

// Category implements Payload.
func (p *AnnotationPayload) Category() Category { return CategoryAnnotations }

// Len implements Payload.
func (p *AnnotationPayload) Len() int { return len(p.Entries) }

// Facts keys each resource by entity, so two sources agree when they
// annotate the same entity with the same resource.
func (p *AnnotationPayload) Facts() map[string]float64 {
	facts := make(map[string]float64)
	for _, a := range p.Entries {
		base := factKey(a.Entity)
		for _, res := range a.Resources {
			facts[base+"/"+strings.ToLower(res)] = 1
		}
	}
	return facts
}

// factKey prefers the human name because foreign ids differ between
// sources while names usually agree.
func factKey(ref ForeignRef) string {
	if ref.Name != "" {
		return strings.ToLower(strings.TrimSpace(ref.Name))
	}
	return strings.ToLower(ref.ForeignID)
}
