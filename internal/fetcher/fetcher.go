// Package fetcher downloads knowledge-base exports over HTTP and decodes the
// XML and tab-separated formats they come in.
package fetcher

import "context"

// Getter fetches a URL and returns the full response body. Non-2xx answers
// are returned as errors classified by the resilience package, so callers
// can tell "no such pathway" from "host is down".
type Getter interface {
	Get(ctx context.Context, rawURL string, accept string) ([]byte, error)
}
