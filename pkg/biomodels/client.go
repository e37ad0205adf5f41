// Package biomodels provides a client for the BioModels curated model
// repository.
package biomodels

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/omicsflow/pathway-enrich/internal/fetcher"
)

// DefaultBaseURL is the public BioModels REST endpoint.
const DefaultBaseURL = "https://www.ebi.ac.uk/biomodels"

// Client defines the BioModels operations.
type Client interface {
	// Model fetches one curated model with its reactions and species.
	Model(ctx context.Context, modelID string) (*Model, error)
}

// Model is the subset of a BioModels entry the engine uses.
type Model struct {
	ID          string
	Name        string
	Version     string
	Publication string // DOI or PubMed reference
	Submitted   time.Time
	Reactions   []Reaction
	Species     []Species
	URL         string
	Raw         []byte
}

// Reaction is a curated reaction with its kinetic parameters.
type Reaction struct {
	ID         string
	Name       string
	ECNumber   string
	XRefs      []string
	Parameters []Parameter
	Annotation []Qualified
}

// Parameter is one kinetic constant of a reaction's rate law.
type Parameter struct {
	Name      string
	Value     float64
	Unit      string
	Substrate string
}

// Species is a curated species with its annotations.
type Species struct {
	ID         string
	Name       string
	XRefs      []string
	Annotation []Qualified
	Notes      string
}

// Qualified is a group of resources sharing one biology qualifier.
type Qualified struct {
	Qualifier string
	Resources []string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithGetter sets the transport.
func WithGetter(g fetcher.Getter) Option {
	return func(c *httpClient) { c.get = g }
}

type httpClient struct {
	baseURL string
	get     fetcher.Getter
}

// NewClient creates a BioModels client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		get:     fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Model(ctx context.Context, modelID string) (*Model, error) {
	if modelID == "" {
		return nil, eris.New("biomodels: model id is required")
	}
	u := c.baseURL + "/" + url.PathEscape(modelID) + "?format=json"
	body, err := c.get.Get(ctx, u, "application/json")
	if err != nil {
		return nil, eris.Wrapf(err, "biomodels: get model %s", modelID)
	}
	m, err := ParseModel(body)
	if err != nil {
		return nil, eris.Wrapf(err, "biomodels: model %s", modelID)
	}
	if m.ID == "" {
		m.ID = modelID
	}
	m.URL = c.baseURL + "/" + url.PathEscape(modelID)
	return m, nil
}

// ParseModel reads a BioModels JSON document.
func ParseModel(data []byte) (*Model, error) {
	if !gjson.ValidBytes(data) {
		return nil, eris.New("invalid json")
	}
	doc := gjson.ParseBytes(data)

	m := &Model{
		ID:          doc.Get("publicationId").String(),
		Name:        doc.Get("name").String(),
		Publication: firstNonEmpty(doc.Get("publication.link").String(), doc.Get("publication.doi").String()),
		Raw:         data,
	}
	if revs := doc.Get("history.revisions").Array(); len(revs) > 0 {
		m.Version = revs[len(revs)-1].Get("version").String()
	}
	if ts := doc.Get("submissionDate"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339, ts.String()); err == nil {
			m.Submitted = t
		}
	}

	doc.Get("reactions").ForEach(func(_, r gjson.Result) bool {
		rx := Reaction{
			ID:         r.Get("id").String(),
			Name:       r.Get("name").String(),
			ECNumber:   r.Get("ec").String(),
			XRefs:      strs(r.Get("xrefs")),
			Annotation: qualified(r.Get("annotations")),
		}
		r.Get("parameters").ForEach(func(_, p gjson.Result) bool {
			if !p.Get("value").Exists() {
				return true
			}
			rx.Parameters = append(rx.Parameters, Parameter{
				Name:      p.Get("name").String(),
				Value:     p.Get("value").Float(),
				Unit:      p.Get("unit").String(),
				Substrate: p.Get("substrate").String(),
			})
			return true
		})
		m.Reactions = append(m.Reactions, rx)
		return true
	})

	doc.Get("species").ForEach(func(_, s gjson.Result) bool {
		m.Species = append(m.Species, Species{
			ID:         s.Get("id").String(),
			Name:       s.Get("name").String(),
			XRefs:      strs(s.Get("xrefs")),
			Annotation: qualified(s.Get("annotations")),
			Notes:      s.Get("notes").String(),
		})
		return true
	})
	return m, nil
}

func qualified(v gjson.Result) []Qualified {
	var out []Qualified
	v.ForEach(func(_, a gjson.Result) bool {
		q := Qualified{Qualifier: a.Get("qualifier").String(), Resources: strs(a.Get("resources"))}
		if q.Qualifier == "" {
			q.Qualifier = "is"
		}
		if len(q.Resources) > 0 {
			out = append(out, q)
		}
		return true
	})
	return out
}

func strs(v gjson.Result) []string {
	var out []string
	for _, s := range v.Array() {
		if str := s.String(); str != "" {
			out = append(out, str)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
