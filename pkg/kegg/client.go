// Package kegg provides a client for KEGG pathway maps in KGML form.
package kegg

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/fetcher"
)

// DefaultBaseURL is the public KEGG REST endpoint.
const DefaultBaseURL = "https://rest.kegg.jp"

// Client defines the KEGG operations.
type Client interface {
	// Pathway fetches and parses the KGML map for a pathway id such as hsa00010.
	Pathway(ctx context.Context, pathwayID string) (*Pathway, error)
}

// Pathway is a parsed KGML document.
type Pathway struct {
	XMLName   xml.Name   `xml:"pathway"`
	Name      string     `xml:"name,attr"` // path:hsa00010
	Org       string     `xml:"org,attr"`
	Number    string     `xml:"number,attr"`
	Title     string     `xml:"title,attr"`
	Link      string     `xml:"link,attr"`
	Entries   []Entry    `xml:"entry"`
	Reactions []Reaction `xml:"reaction"`

	Raw []byte `xml:"-"`
	URL string `xml:"-"`
}

// Entry is a node on the map. Name holds space-separated KEGG ids.
type Entry struct {
	ID       string    `xml:"id,attr"`
	Name     string    `xml:"name,attr"`
	Type     string    `xml:"type,attr"` // compound, gene, ortholog, enzyme, map
	Reaction string    `xml:"reaction,attr"`
	Graphics []Graphic `xml:"graphics"`
}

// Graphic is a KGML drawing element. X and Y are the centre of the shape
// in a top-left-origin coordinate system.
type Graphic struct {
	Name   string  `xml:"name,attr"`
	Type   string  `xml:"type,attr"`
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
}

// Reaction is a KGML reaction with its substrates and products.
type Reaction struct {
	ID         string   `xml:"id,attr"`
	Name       string   `xml:"name,attr"` // rn:R00299
	Type       string   `xml:"type,attr"`
	Substrates []Member `xml:"substrate"`
	Products   []Member `xml:"product"`
}

// Member is a reaction participant.
type Member struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// IDs splits Name into individual KEGG ids without their database prefix.
func (e Entry) IDs() []string {
	return splitIDs(e.Name)
}

// IDs splits Name into individual KEGG reaction ids.
func (r Reaction) IDs() []string {
	return splitIDs(r.Name)
}

// Label returns the first graphics label, trimmed of KEGG's "..." suffix.
func (e Entry) Label() string {
	if len(e.Graphics) == 0 {
		return ""
	}
	name := e.Graphics[0].Name
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(strings.TrimSpace(name), "...")
}

func splitIDs(name string) []string {
	var out []string
	for _, f := range strings.Fields(name) {
		if i := strings.Index(f, ":"); i >= 0 {
			f = f[i+1:]
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return out
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

// NewClient creates a KEGG client.
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

func (c *httpClient) Pathway(ctx context.Context, pathwayID string) (*Pathway, error) {
	id := strings.TrimPrefix(pathwayID, "path:")
	if id == "" {
		return nil, eris.New("kegg: pathway id is required")
	}
	u := c.baseURL + "/get/" + url.PathEscape(id) + "/kgml"
	body, err := c.get.Get(ctx, u, "application/xml")
	if err != nil {
		return nil, eris.Wrapf(err, "kegg: get %s", id)
	}

	var p Pathway
	if err := fetcher.DecodeXML(body, &p); err != nil {
		return nil, eris.Wrapf(err, "kegg: parse %s", id)
	}
	p.Raw = body
	p.URL = u
	return &p, nil
}
