// Package wikipathways provides a client for WikiPathways diagrams in GPML form.
package wikipathways

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/fetcher"
)

// DefaultBaseURL serves the released GPML assets.
const DefaultBaseURL = "https://www.wikipathways.org/wikipathways-assets/pathways"

// Client defines the WikiPathways operations.
type Client interface {
	// Pathway fetches and parses the GPML document for an id such as WP534.
	Pathway(ctx context.Context, wpID string) (*Pathway, error)
}

// Pathway is a parsed GPML document.
type Pathway struct {
	XMLName   xml.Name    `xml:"Pathway"`
	Name      string      `xml:"Name,attr"`
	Organism  string      `xml:"Organism,attr"`
	Version   string      `xml:"Version,attr"`
	License   string      `xml:"License,attr"`
	Board     Board       `xml:"Graphics"`
	DataNodes []DataNode  `xml:"DataNode"`
	Comments  []string    `xml:"Comment"`
	Citations []Reference `xml:"Biopax>PublicationXref"`

	Raw []byte `xml:"-"`
	URL string `xml:"-"`
}

// Board is the canvas size.
type Board struct {
	Width  float64 `xml:"BoardWidth,attr"`
	Height float64 `xml:"BoardHeight,attr"`
}

// DataNode is a drawn entity. Graphics centres are in a top-left-origin
// coordinate system.
type DataNode struct {
	GraphID  string   `xml:"GraphId,attr"`
	Label    string   `xml:"TextLabel,attr"`
	Type     string   `xml:"Type,attr"` // Metabolite, GeneProduct, Protein, Pathway
	Graphics NodeBox  `xml:"Graphics"`
	Xref     Xref     `xml:"Xref"`
	Comments []string `xml:"Comment"`
}

// NodeBox is a DataNode's centre-anchored box.
type NodeBox struct {
	CenterX float64 `xml:"CenterX,attr"`
	CenterY float64 `xml:"CenterY,attr"`
	Width   float64 `xml:"Width,attr"`
	Height  float64 `xml:"Height,attr"`
}

// Xref is a database cross reference.
type Xref struct {
	Database string `xml:"Database,attr"`
	ID       string `xml:"ID,attr"`
}

// Reference is a publication cross reference.
type Reference struct {
	ID    string `xml:"ID"`
	DB    string `xml:"DB"`
	Title string `xml:"TITLE"`
}

// CURIE renders the cross reference as a compact identifier, or "" when
// the node is not cross-referenced.
func (x Xref) CURIE() string {
	if x.ID == "" {
		return ""
	}
	db := strings.ToLower(strings.ReplaceAll(x.Database, " ", ""))
	switch db {
	case "chebi":
		if strings.HasPrefix(strings.ToUpper(x.ID), "CHEBI:") {
			return strings.ToUpper(x.ID[:5]) + x.ID[5:]
		}
		return "CHEBI:" + x.ID
	case "keggcompound":
		return "kegg.compound:" + x.ID
	case "":
		return x.ID
	default:
		return db + ":" + x.ID
	}
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

// NewClient creates a WikiPathways client.
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

func (c *httpClient) Pathway(ctx context.Context, wpID string) (*Pathway, error) {
	if wpID == "" {
		return nil, eris.New("wikipathways: id is required")
	}
	id := url.PathEscape(wpID)
	u := c.baseURL + "/" + id + "/" + id + ".gpml"
	body, err := c.get.Get(ctx, u, "application/xml")
	if err != nil {
		return nil, eris.Wrapf(err, "wikipathways: get %s", wpID)
	}

	var p Pathway
	if err := fetcher.DecodeXML(body, &p); err != nil {
		return nil, eris.Wrapf(err, "wikipathways: parse %s", wpID)
	}
	p.Raw = body
	p.URL = u
	return &p, nil
}
