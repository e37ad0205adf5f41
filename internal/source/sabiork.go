package source

import (
	"context"
	"strings"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/pkg/sabiork"
)

// SabioRKName is the registry name of the SABIO-RK adapter.
const SabioRKName = "sabiork"

const sabioCitation = "Wittig U et al. SABIO-RK - database for biochemical reaction kinetics. Nucleic Acids Res. 2012;40:D790-6"

// SabioRK adapts the curated SABIO-RK kinetic database.
type SabioRK struct {
	*Base
	client sabiork.Client
}

// NewSabioRK creates the adapter. A nil client uses the public endpoint.
func NewSabioRK(client sabiork.Client, s Settings) *SabioRK {
	if client == nil {
		var opts []sabiork.Option
		if s.BaseURL != "" {
			opts = append(opts, sabiork.WithBaseURL(s.BaseURL))
		}
		client = sabiork.NewClient(opts...)
	}
	return &SabioRK{
		Base:   NewBase(SabioRKName, sabiork.DefaultBaseURL, 0.9, []model.Category{model.CategoryKinetics}, s),
		client: client,
	}
}

// Fetch implements Adapter.
func (a *SabioRK) Fetch(ctx context.Context, pathwayID string, c model.Category, opts FetchOptions) model.Result {
	q := sabiork.Query{PathwayID: pathwayID, Organism: opts.Organism}
	query := map[string]string{"q": q.String()}
	return a.Run(ctx, c, query, func(ctx context.Context) (model.Result, error) {
		exp, err := a.client.KineticLaws(ctx, q)
		if err != nil {
			return model.Result{}, err
		}

		p := &model.KineticPayload{}
		for _, e := range exp.Entries {
			p.Parameters = append(p.Parameters, model.KineticParameter{
				Reaction:    sabioReaction(e),
				Name:        e.ParamType,
				Value:       e.Value,
				Unit:        e.Unit,
				Substrate:   e.Species,
				Organism:    e.Organism,
				Temperature: e.Temperature,
				PH:          e.PH,
				ECNumber:    e.ECNumber,
			})
		}

		citation := sabioCitation
		if len(exp.Entries) > 0 && exp.Entries[0].PubMedID != "" {
			citation = "pubmed:" + exp.Entries[0].PubMedID + "; " + sabioCitation
		}
		return WithQuality(model.Result{
			Payload: p,
			Raw:     exp.Raw,
			Attribution: model.SourceAttribution{
				URL:         exp.URL,
				RetrievedAt: a.Now(),
				License:     "SABIO-RK terms of use",
				Citation:    citation,
			},
		}), nil
	})
}

func sabioReaction(e sabiork.Entry) model.ForeignRef {
	ref := model.ForeignRef{ForeignID: e.KeggReactionID, Name: strings.TrimSpace(e.EnzymeName)}
	if ref.ForeignID == "" {
		ref.ForeignID = "sabio:" + e.EntryID
	} else {
		ref.XRefs = append(ref.XRefs, "kegg.reaction:"+e.KeggReactionID)
	}
	if e.ECNumber != "" {
		ref.XRefs = append(ref.XRefs, "ec-code:"+e.ECNumber)
	}
	return ref
}
