package model

import (
	"slices"

	"github.com/rotisserie/eris"
)

// EnrichmentRequest is the input of one orchestrator invocation.
type EnrichmentRequest struct {
	ID         string     `json:"id,omitempty"`
	PathwayID  string     `json:"pathway_id"`
	Categories []Category `json:"categories"`

	// PreferredSources is an ordered hint used only to break ties in ranking.
	PreferredSources []string `json:"preferred_sources,omitempty"`
	ExcludedSources  []string `json:"excluded_sources,omitempty"`

	MinQuality   float64 `json:"min_quality"`
	AllowPartial bool    `json:"allow_partial"`

	// MergePolicies overrides an enricher's default policy per category.
	MergePolicies map[Category]MergePolicy `json:"merge_policies,omitempty"`

	// ForeignIDs maps a source name to that source's id for this pathway.
	// Sources without an entry are queried with PathwayID.
	ForeignIDs map[string]string `json:"foreign_ids,omitempty"`
	Organism   string            `json:"organism,omitempty"`
}

// NewRequest builds a request with the defaults: partial results allowed,
// no quality floor.
func NewRequest(pathwayID string, categories ...Category) EnrichmentRequest {
	return EnrichmentRequest{
		PathwayID:    pathwayID,
		Categories:   categories,
		AllowPartial: true,
	}
}

// Validate checks the request before any adapter is queried.
func (r EnrichmentRequest) Validate() error {
	if r.PathwayID == "" {
		return eris.New("request: pathway id is required")
	}
	if len(r.Categories) == 0 {
		return eris.New("request: at least one category is required")
	}
	for _, c := range r.Categories {
		if !c.Valid() {
			return eris.Errorf("request: unknown category %q", c)
		}
	}
	if r.MinQuality < 0 || r.MinQuality > 1 {
		return eris.Errorf("request: min quality must be within [0,1], got %v", r.MinQuality)
	}
	for c, p := range r.MergePolicies {
		if !p.Valid() {
			return eris.Errorf("request: unknown merge policy %q for %s", p, c)
		}
	}
	return nil
}

// Excludes reports whether source was excluded by the caller.
func (r EnrichmentRequest) Excludes(source string) bool {
	return slices.Contains(r.ExcludedSources, source)
}

// PreferenceRank returns the position of source in PreferredSources, or
// len(PreferredSources) when it is not listed.
func (r EnrichmentRequest) PreferenceRank(source string) int {
	if i := slices.Index(r.PreferredSources, source); i >= 0 {
		return i
	}
	return len(r.PreferredSources)
}

// QueryID returns the id to send to source.
func (r EnrichmentRequest) QueryID(source string) string {
	if id, ok := r.ForeignIDs[source]; ok && id != "" {
		return id
	}
	return r.PathwayID
}

// UniqueCategories returns Categories with duplicates removed, order kept.
func (r EnrichmentRequest) UniqueCategories() []Category {
	seen := make(map[Category]bool, len(r.Categories))
	out := make([]Category, 0, len(r.Categories))
	for _, c := range r.Categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
