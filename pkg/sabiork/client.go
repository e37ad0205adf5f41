// Package sabiork provides a client for the SABIO-RK kinetic database.
package sabiork

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/fetcher"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
)

// DefaultBaseURL is the public SABIO-RK REST endpoint.
const DefaultBaseURL = "https://sabiork.h-its.org/sabioRestWebServices"

// exportFields are the columns requested from the TSV export.
var exportFields = []string{
	"EntryID", "Organism", "ECNumber", "KeggReactionID", "Enzymename",
	"Parameter", "Temperature", "pH", "PubMedID",
}

// Client defines the SABIO-RK operations.
type Client interface {
	// KineticLaws searches kinetic law entries for a KEGG pathway id,
	// optionally restricted to one organism.
	KineticLaws(ctx context.Context, q Query) (*Export, error)
}

// Query selects kinetic laws.
type Query struct {
	PathwayID string
	Organism  string
}

// String renders the SABIO-RK query language expression.
func (q Query) String() string {
	parts := []string{"Pathway:" + strconv.Quote(q.PathwayID)}
	if q.Organism != "" {
		parts = append(parts, "Organism:"+strconv.Quote(q.Organism))
	}
	return strings.Join(parts, " AND ")
}

// Export is the parsed result of one search.
type Export struct {
	Entries []Entry
	URL     string
	Raw     []byte
}

// Entry is one kinetic parameter measurement.
type Entry struct {
	EntryID        string
	Organism       string
	ECNumber       string
	KeggReactionID string
	EnzymeName     string
	ParamType      string // Km, kcat, Vmax, Ki
	Species        string
	Value          float64
	Unit           string
	Temperature    *float64
	PH             *float64
	PubMedID       string
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

// NewClient creates a SABIO-RK client.
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

func (c *httpClient) KineticLaws(ctx context.Context, q Query) (*Export, error) {
	if q.PathwayID == "" {
		return nil, eris.New("sabiork: pathway id is required")
	}
	params := url.Values{}
	params.Set("q", q.String())
	params.Set("format", "tsv")
	for _, f := range exportFields {
		params.Add("fields[]", f)
	}
	u := c.baseURL + "/kineticlawsExportTsv?" + params.Encode()

	body, err := c.get.Get(ctx, u, "text/tab-separated-values")
	if err != nil {
		return nil, eris.Wrapf(err, "sabiork: search %s", q.PathwayID)
	}
	// SABIO-RK answers an empty search with a plain-text message.
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("No results")) {
		return nil, eris.Wrapf(resilience.ErrNotFound, "sabiork: no kinetic laws for %s", q.PathwayID)
	}

	entries, err := ParseExport(body)
	if err != nil {
		return nil, eris.Wrapf(err, "sabiork: search %s", q.PathwayID)
	}
	if len(entries) == 0 {
		return nil, eris.Wrapf(resilience.ErrNotFound, "sabiork: no kinetic laws for %s", q.PathwayID)
	}
	return &Export{Entries: entries, URL: u, Raw: body}, nil
}

// ParseExport reads the tab-separated export. Rows whose start value is not
// a number are skipped.
func ParseExport(data []byte) ([]Entry, error) {
	rows, err := fetcher.ReadTable(bytes.NewReader(data), fetcher.TableOptions{Delimiter: '\t'})
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, row := range rows {
		v, err := strconv.ParseFloat(row["parameter.startValue"], 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{
			EntryID:        row["EntryID"],
			Organism:       row["Organism"],
			ECNumber:       row["ECNumber"],
			KeggReactionID: row["KeggReactionID"],
			EnzymeName:     row["Enzymename"],
			ParamType:      row["parameter.type"],
			Species:        row["parameter.associatedSpecies"],
			Value:          v,
			Unit:           row["parameter.unit"],
			Temperature:    optFloat(row["Temperature"]),
			PH:             optFloat(row["pH"]),
			PubMedID:       row["PubMedID"],
		})
	}
	return out, nil
}

func optFloat(s string) *float64 {
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
