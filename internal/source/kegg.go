package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
	"github.com/omicsflow/pathway-enrich/pkg/kegg"
)

// KEGGName is the registry name of the KEGG adapter.
const KEGGName = "kegg"

const keggCitation = "Kanehisa M, Goto S. KEGG: Kyoto Encyclopedia of Genes and Genomes. Nucleic Acids Res. 2000;28:27-30"

// keggPrefixes maps KGML id prefixes to identifiers.org namespaces.
var keggPrefixes = map[string]string{
	"cpd":  "kegg.compound",
	"gl":   "kegg.glycan",
	"dr":   "kegg.drug",
	"rn":   "kegg.reaction",
	"ko":   "kegg.orthology",
	"ec":   "ec-code",
	"path": "kegg.pathway",
}

// KEGG adapts KEGG pathway maps. Maps are computationally derived, so the
// source ranks below the curated databases.
type KEGG struct {
	*Base
	client kegg.Client
}

// NewKEGG creates the adapter. A nil client uses the public endpoint.
func NewKEGG(client kegg.Client, s Settings) *KEGG {
	if client == nil {
		var opts []kegg.Option
		if s.BaseURL != "" {
			opts = append(opts, kegg.WithBaseURL(s.BaseURL))
		}
		client = kegg.NewClient(opts...)
	}
	return &KEGG{
		Base: NewBase(KEGGName, kegg.DefaultBaseURL, 0.85,
			[]model.Category{model.CategoryCoordinates, model.CategoryAnnotations}, s),
		client: client,
	}
}

// Fetch implements Adapter.
func (a *KEGG) Fetch(ctx context.Context, pathwayID string, c model.Category, _ FetchOptions) model.Result {
	query := map[string]string{"pathway": pathwayID, "format": "kgml"}
	return a.Run(ctx, c, query, func(ctx context.Context) (model.Result, error) {
		p, err := a.client.Pathway(ctx, pathwayID)
		if err != nil {
			return model.Result{}, err
		}

		var payload model.Payload
		switch c {
		case model.CategoryCoordinates:
			payload = keggCoordinates(p)
		case model.CategoryAnnotations:
			payload = keggAnnotations(p)
		}
		if payload == nil || payload.Len() == 0 {
			return model.Result{}, eris.Wrapf(resilience.ErrNotFound, "map %s has no %s", pathwayID, c)
		}

		return WithQuality(model.Result{
			Payload: payload,
			Raw:     p.Raw,
			Attribution: model.SourceAttribution{
				URL:         p.URL,
				RetrievedAt: a.Now(),
				License:     "KEGG academic use",
				Citation:    keggCitation,
			},
		}), nil
	})
}

// keggCURIEs turns "cpd:C00031 hsa:3098" into compact identifiers.
func keggCURIEs(name string) []string {
	var out []string
	for _, f := range strings.Fields(name) {
		prefix, local, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		if ns, known := keggPrefixes[prefix]; known {
			out = append(out, ns+":"+local)
		} else {
			// Organism gene ids keep their organism code.
			out = append(out, "kegg.genes:"+f)
		}
	}
	return out
}

func keggRef(e kegg.Entry) model.ForeignRef {
	ref := model.ForeignRef{ForeignID: e.ID, Name: e.Label(), XRefs: keggCURIEs(e.Name)}
	if ids := e.IDs(); len(ids) > 0 {
		ref.ForeignID = ids[0]
	}
	if e.Reaction != "" {
		ref.XRefs = append(ref.XRefs, keggCURIEs(e.Reaction)...)
	}
	return ref
}

func keggCoordinates(p *kegg.Pathway) *model.CoordinatePayload {
	out := &model.CoordinatePayload{
		ForeignPathwayID: strings.TrimPrefix(p.Name, "path:"),
		Convention:       model.Convention{Origin: model.OriginTopLeft, Anchor: model.AnchorCenter},
	}
	for _, e := range p.Entries {
		if e.Type == "map" || len(e.Graphics) == 0 {
			continue
		}
		g := e.Graphics[0]
		if g.Type == "line" {
			continue
		}
		out.Placements = append(out.Placements, model.Placement{
			ForeignRef: keggRef(e),
			X:          g.X,
			Y:          g.Y,
			Width:      g.Width,
			Height:     g.Height,
		})
		// KGML has no board size; the canvas is the extent of the shapes.
		out.CanvasWidth = max(out.CanvasWidth, g.X+g.Width/2)
		out.CanvasHeight = max(out.CanvasHeight, g.Y+g.Height/2)
	}
	return out
}

func keggAnnotations(p *kegg.Pathway) *model.AnnotationPayload {
	out := &model.AnnotationPayload{}
	for _, e := range p.Entries {
		if e.Type == "map" {
			continue
		}
		ref := keggRef(e)
		if len(ref.XRefs) == 0 {
			continue
		}
		out.Entries = append(out.Entries, model.Annotation{Entity: ref, Qualifier: "is", Resources: ref.XRefs})
	}
	for _, r := range p.Reactions {
		ids := r.IDs()
		if len(ids) == 0 {
			continue
		}
		res := keggCURIEs(r.Name)
		out.Entries = append(out.Entries, model.Annotation{
			Entity:    model.ForeignRef{ForeignID: ids[0], XRefs: res},
			Qualifier: "is",
			Resources: res,
		})
	}
	return out
}
