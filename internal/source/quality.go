package source

import (
	"math"
	"regexp"
	"strings"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// curiePattern accepts prefix:local compact identifiers such as CHEBI:17234
// or kegg.compound:C00031.
var curiePattern = regexp.MustCompile(`^[A-Za-z][\w.\-]*:\S+$`)

// knownKinetic are parameter names whose values must be strictly positive.
var knownKinetic = map[string]bool{
	"km": true, "kcat": true, "vmax": true, "ki": true, "kd": true, "ka": true, "kcat/km": true,
}

// KineticQuality scores a kinetic payload. A parameter is complete when it
// has a unit and a reaction identity; it is valid when its value is finite
// and, for the usual constants, positive.
func KineticQuality(p *model.KineticPayload) (completeness, validation float64) {
	if p == nil || len(p.Parameters) == 0 {
		return 0, 0
	}
	var complete, valid int
	for _, kp := range p.Parameters {
		if kp.Unit != "" && (kp.Reaction.ForeignID != "" || kp.Reaction.Name != "") {
			complete++
		}
		if math.IsNaN(kp.Value) || math.IsInf(kp.Value, 0) {
			continue
		}
		if knownKinetic[strings.ToLower(kp.Name)] && kp.Value <= 0 {
			continue
		}
		valid++
	}
	n := len(p.Parameters)
	return model.Ratio(complete, n), model.Ratio(valid, n)
}

// CoordinateQuality scores a coordinate payload. A placement is complete
// when it carries a name or a cross reference besides its foreign id; it is
// valid when its box is finite, has a positive size and lies on the canvas.
func CoordinateQuality(p *model.CoordinatePayload) (completeness, validation float64) {
	if p == nil || len(p.Placements) == 0 {
		return 0, 0
	}
	var complete, valid int
	for _, pl := range p.Placements {
		if pl.Name != "" || len(pl.XRefs) > 0 {
			complete++
		}
		if !pl.Finite() || pl.Width <= 0 || pl.Height <= 0 {
			continue
		}
		if p.CanvasWidth > 0 && p.CanvasHeight > 0 && !onCanvas(pl, p) {
			continue
		}
		valid++
	}
	n := len(p.Placements)
	return model.Ratio(complete, n), model.Ratio(valid, n)
}

func onCanvas(pl model.Placement, p *model.CoordinatePayload) bool {
	x, y := pl.X, pl.Y
	if p.Convention.Anchor == model.AnchorCenter {
		x -= pl.Width / 2
		y -= pl.Height / 2
	}
	const slack = 1e-6
	return x >= -slack && y >= -slack &&
		x+pl.Width <= p.CanvasWidth+slack && y+pl.Height <= p.CanvasHeight+slack
}

// AnnotationQuality scores an annotation payload. An entry is complete when
// it has at least one resource; validation is the share of resources that
// are well-formed compact identifiers.
func AnnotationQuality(p *model.AnnotationPayload) (completeness, validation float64) {
	if p == nil || len(p.Entries) == 0 {
		return 0, 0
	}
	var complete, resources, valid int
	for _, a := range p.Entries {
		if len(a.Resources) > 0 {
			complete++
		}
		for _, r := range a.Resources {
			resources++
			if curiePattern.MatchString(r) {
				valid++
			}
		}
	}
	return model.Ratio(complete, len(p.Entries)), model.Ratio(valid, resources)
}

// WithQuality fills completeness and validation for any payload kind.
func WithQuality(r model.Result) model.Result {
	switch p := r.Payload.(type) {
	case *model.KineticPayload:
		r.Quality.Completeness, r.Quality.Validation = KineticQuality(p)
	case *model.CoordinatePayload:
		r.Quality.Completeness, r.Quality.Validation = CoordinateQuality(p)
	case *model.AnnotationPayload:
		r.Quality.Completeness, r.Quality.Validation = AnnotationQuality(p)
	}
	// A freshly fetched result has nothing to disagree with yet.
	r.Quality.Consistency = 1
	return r
}
