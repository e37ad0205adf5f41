package model

import "time"

// SourceAttribution records where a Result came from.
type SourceAttribution struct {
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	Version     string    `json:"version,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	// UpdatedAt is when the source last revised the data, if it says.
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	License     string    `json:"license,omitempty"`
	Citation    string    `json:"citation,omitempty"`
}

// Payload is the category-specific data carried by a successful Result.
type Payload interface {
	// Category is the field category this payload can enrich.
	Category() Category
	// Facts returns comparable facts keyed by a stable identity. Two payloads
	// agree on a key when their values are close. Presence-only facts use 1.
	Facts() map[string]float64
	// Len is the number of top-level items (parameters, placements, entries).
	Len() int
}

// Result describes one adapter fetch attempt. Results are passed by value
// and never modified after the adapter returns them; derived copies are made
// with the With* methods.
type Result struct {
	Source      string            `json:"source"`
	Category    Category          `json:"category"`
	Payload     Payload           `json:"payload,omitempty"`
	Status      Status            `json:"status"`
	Failure     FailureKind       `json:"failure,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Quality     QualityMetrics    `json:"quality"`
	Attribution SourceAttribution `json:"attribution"`
	Query       map[string]string `json:"query,omitempty"`
	Raw         []byte            `json:"-"`
}

// OK reports whether the Result carries a usable payload.
func (r Result) OK() bool {
	return r.Status == StatusSuccess && r.Payload != nil
}

// WithConsistency returns a copy with the consistency component replaced.
func (r Result) WithConsistency(c float64) Result {
	r.Quality.Consistency = Clamp01(c)
	return r
}

// Failed builds a non-success Result for source/category.
func Failed(source string, category Category, kind FailureKind, reason string) Result {
	status := StatusError
	if kind == FailureNotFound {
		status = StatusNotFound
	}
	return Result{
		Source:   source,
		Category: category,
		Status:   status,
		Failure:  kind,
		Reason:   reason,
		Attribution: SourceAttribution{
			Source:      source,
			RetrievedAt: time.Now().UTC(),
		},
	}
}
