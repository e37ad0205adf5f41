// Package source defines the knowledge-base adapter contract and the four
// concrete adapters: BioModels, SABIO-RK, KEGG and WikiPathways.
package source

import (
	"context"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// FetchOptions carries request hints an adapter may use to narrow its query.
type FetchOptions struct {
	Organism string
}

// Adapter fetches one category of data for a pathway from one knowledge base.
//
// Fetch never fails with a Go error: a missing pathway or an unreachable host
// become a non-success Result carrying the failure kind and reason. Fetch is
// safe for concurrent use.
type Adapter interface {
	// Name is the stable source name used in requests, rankings and records.
	Name() string
	// Host identifies the remote endpoint. Adapters sharing a host share a
	// circuit breaker and count once toward fan-out concurrency.
	Host() string
	// Reliability is the fixed trust score for this source.
	Reliability() float64
	// Supports reports whether the adapter can fetch category c.
	Supports(c model.Category) bool
	// Fetch queries the source for pathwayID, which is already translated to
	// the source's own identifier.
	Fetch(ctx context.Context, pathwayID string, c model.Category, opts FetchOptions) model.Result
}
