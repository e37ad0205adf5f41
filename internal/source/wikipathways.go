package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
	"github.com/omicsflow/pathway-enrich/pkg/wikipathways"
)

// WikiPathwaysName is the registry name of the WikiPathways adapter.
const WikiPathwaysName = "wikipathways"

// WikiPathways adapts community-curated WikiPathways diagrams.
type WikiPathways struct {
	*Base
	client wikipathways.Client
}

// NewWikiPathways creates the adapter. A nil client uses the public endpoint.
func NewWikiPathways(client wikipathways.Client, s Settings) *WikiPathways {
	if client == nil {
		var opts []wikipathways.Option
		if s.BaseURL != "" {
			opts = append(opts, wikipathways.WithBaseURL(s.BaseURL))
		}
		client = wikipathways.NewClient(opts...)
	}
	return &WikiPathways{
		Base: NewBase(WikiPathwaysName, wikipathways.DefaultBaseURL, 0.7,
			[]model.Category{model.CategoryCoordinates, model.CategoryAnnotations}, s),
		client: client,
	}
}

// Fetch implements Adapter.
func (a *WikiPathways) Fetch(ctx context.Context, pathwayID string, c model.Category, _ FetchOptions) model.Result {
	query := map[string]string{"wpid": pathwayID, "format": "gpml"}
	return a.Run(ctx, c, query, func(ctx context.Context) (model.Result, error) {
		p, err := a.client.Pathway(ctx, pathwayID)
		if err != nil {
			return model.Result{}, err
		}

		var payload model.Payload
		switch c {
		case model.CategoryCoordinates:
			payload = wpCoordinates(pathwayID, p)
		case model.CategoryAnnotations:
			payload = wpAnnotations(p)
		}
		if payload == nil || payload.Len() == 0 {
			return model.Result{}, eris.Wrapf(resilience.ErrNotFound, "%s has no %s", pathwayID, c)
		}

		license := p.License
		if license == "" {
			license = "CC0-1.0"
		}
		var citation string
		if len(p.Citations) > 0 && p.Citations[0].ID != "" {
			citation = strings.ToLower(p.Citations[0].DB) + ":" + p.Citations[0].ID
		}
		var updated time.Time
		if t, err := time.Parse("20060102", p.Version); err == nil {
			updated = t
		}

		return WithQuality(model.Result{
			Payload: payload,
			Raw:     p.Raw,
			Attribution: model.SourceAttribution{
				URL:         p.URL,
				Version:     p.Version,
				RetrievedAt: a.Now(),
				UpdatedAt:   updated,
				License:     license,
				Citation:    citation,
			},
		}), nil
	})
}

func wpRef(n wikipathways.DataNode) model.ForeignRef {
	ref := model.ForeignRef{ForeignID: n.GraphID, Name: strings.TrimSpace(n.Label)}
	if curie := n.Xref.CURIE(); curie != "" {
		ref.XRefs = []string{curie}
	}
	return ref
}

func wpCoordinates(id string, p *wikipathways.Pathway) *model.CoordinatePayload {
	out := &model.CoordinatePayload{
		ForeignPathwayID: id,
		Convention:       model.Convention{Origin: model.OriginTopLeft, Anchor: model.AnchorCenter},
		CanvasWidth:      p.Board.Width,
		CanvasHeight:     p.Board.Height,
	}
	var w, h float64
	for _, n := range p.DataNodes {
		g := n.Graphics
		if n.GraphID == "" || (g.Width == 0 && g.Height == 0) {
			continue
		}
		out.Placements = append(out.Placements, model.Placement{
			ForeignRef: wpRef(n),
			X:          g.CenterX,
			Y:          g.CenterY,
			Width:      g.Width,
			Height:     g.Height,
		})
		w = max(w, g.CenterX+g.Width/2)
		h = max(h, g.CenterY+g.Height/2)
	}
	if out.CanvasWidth <= 0 || out.CanvasHeight <= 0 {
		out.CanvasWidth, out.CanvasHeight = w, h
	}
	return out
}

func wpAnnotations(p *wikipathways.Pathway) *model.AnnotationPayload {
	out := &model.AnnotationPayload{}
	for _, n := range p.DataNodes {
		ref := wpRef(n)
		notes := strings.TrimSpace(strings.Join(n.Comments, "\n"))
		if len(ref.XRefs) == 0 && notes == "" {
			continue
		}
		out.Entries = append(out.Entries, model.Annotation{
			Entity:    ref,
			Qualifier: "is",
			Resources: ref.XRefs,
			Notes:     notes,
		})
	}
	return out
}
