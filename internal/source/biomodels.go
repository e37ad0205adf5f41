package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
	"github.com/omicsflow/pathway-enrich/pkg/biomodels"
)

// BioModelsName is the registry name of the BioModels adapter.
const BioModelsName = "biomodels"

// BioModels adapts the curated BioModels repository. Its models are peer
// reviewed, so it carries the highest reliability.
type BioModels struct {
	*Base
	client biomodels.Client
}

// NewBioModels creates the adapter. A nil client uses the public endpoint.
func NewBioModels(client biomodels.Client, s Settings) *BioModels {
	if client == nil {
		var opts []biomodels.Option
		if s.BaseURL != "" {
			opts = append(opts, biomodels.WithBaseURL(s.BaseURL))
		}
		client = biomodels.NewClient(opts...)
	}
	return &BioModels{
		Base: NewBase(BioModelsName, biomodels.DefaultBaseURL, 1.0,
			[]model.Category{model.CategoryKinetics, model.CategoryAnnotations}, s),
		client: client,
	}
}

// Fetch implements Adapter.
func (a *BioModels) Fetch(ctx context.Context, pathwayID string, c model.Category, _ FetchOptions) model.Result {
	query := map[string]string{"model_id": pathwayID}
	return a.Run(ctx, c, query, func(ctx context.Context) (model.Result, error) {
		m, err := a.client.Model(ctx, pathwayID)
		if err != nil {
			return model.Result{}, err
		}

		var payload model.Payload
		switch c {
		case model.CategoryKinetics:
			payload = bioKinetics(m)
		case model.CategoryAnnotations:
			payload = bioAnnotations(m)
		}
		if payload == nil || payload.Len() == 0 {
			return model.Result{}, eris.Wrapf(resilience.ErrNotFound, "model %s has no %s", pathwayID, c)
		}

		return WithQuality(model.Result{
			Payload: payload,
			Raw:     m.Raw,
			Attribution: model.SourceAttribution{
				URL:         m.URL,
				Version:     m.Version,
				RetrievedAt: a.Now(),
				UpdatedAt:   m.Submitted,
				License:     "CC0-1.0",
				Citation:    m.Publication,
			},
		}), nil
	})
}

func bioKinetics(m *biomodels.Model) *model.KineticPayload {
	p := &model.KineticPayload{}
	for _, rx := range m.Reactions {
		ref := model.ForeignRef{ForeignID: rx.ID, Name: rx.Name, XRefs: rx.XRefs}
		for _, param := range rx.Parameters {
			p.Parameters = append(p.Parameters, model.KineticParameter{
				Reaction:  ref,
				Name:      param.Name,
				Value:     param.Value,
				Unit:      param.Unit,
				Substrate: param.Substrate,
				ECNumber:  rx.ECNumber,
			})
		}
	}
	return p
}

func bioAnnotations(m *biomodels.Model) *model.AnnotationPayload {
	p := &model.AnnotationPayload{}
	for _, sp := range m.Species {
		ref := model.ForeignRef{ForeignID: sp.ID, Name: sp.Name, XRefs: sp.XRefs}
		for i, q := range sp.Annotation {
			a := model.Annotation{Entity: ref, Qualifier: q.Qualifier, Resources: q.Resources}
			if i == 0 {
				a.Notes = sp.Notes
			}
			p.Entries = append(p.Entries, a)
		}
	}
	for _, rx := range m.Reactions {
		ref := model.ForeignRef{ForeignID: rx.ID, Name: rx.Name, XRefs: rx.XRefs}
		for _, q := range rx.Annotation {
			p.Entries = append(p.Entries, model.Annotation{Entity: ref, Qualifier: q.Qualifier, Resources: q.Resources})
		}
	}
	return p
}
