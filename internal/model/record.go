package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ChangeSummary is what a Field Enricher reports after applying a Result.
type ChangeSummary struct {
	EntitiesChanged int            `json:"entities_changed"`
	ChangedEntities []string       `json:"changed_entities,omitempty"`
	FieldsTouched   []string       `json:"fields_touched,omitempty"`
	ChangeCounts    map[string]int `json:"change_counts,omitempty"` // per entity kind, plus "layout"
	Warnings        []string       `json:"warnings,omitempty"`
}

// CategoryRecord is the provenance of one applied category.
type CategoryRecord struct {
	Category           Category          `json:"category"`
	WinningSource      string            `json:"winning_source"`
	QueryParams        map[string]string `json:"query_params,omitempty"`
	PayloadSnapshotRef string            `json:"payload_snapshot_ref,omitempty"`
	Score              float64           `json:"score"`
	Quality            QualityMetrics    `json:"quality"`
	Confidence         ConfidenceLabel   `json:"confidence"`
	MergePolicy        MergePolicy       `json:"merge_policy"`
	EntitiesChanged    int               `json:"entities_changed"`
	ChangedEntities    []string          `json:"changed_entities,omitempty"`
	ChangeCounts       map[string]int    `json:"change_counts,omitempty"`
	FieldsTouched      []string          `json:"fields_touched,omitempty"`
	Citations          []string          `json:"citations,omitempty"`
	Attribution        SourceAttribution `json:"attribution"`
	Candidates         []CandidateRecord `json:"candidates,omitempty"`
}

// CandidateRecord is one Result that competed for a category.
type CandidateRecord struct {
	Source  string      `json:"source"`
	Status  Status      `json:"status"`
	Score   float64     `json:"score"`
	Failure FailureKind `json:"failure,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// SkippedCategory is a requested category that produced no change.
type SkippedCategory struct {
	Category Category    `json:"category"`
	Kind     FailureKind `json:"kind"`
	Reason   string      `json:"reason"`
}

// EnrichmentRecord is the persisted provenance of one enrichment
// invocation. It is never modified after it is saved; re-enrichment
// produces a new record.
type EnrichmentRecord struct {
	ID         string            `json:"id"`
	RequestID  string            `json:"request_id,omitempty"`
	PathwayID  string            `json:"pathway_id"`
	CreatedAt  time.Time         `json:"created_at"`
	Categories []CategoryRecord  `json:"categories"`
	Skipped    []SkippedCategory `json:"skipped,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Category returns the detail for c, if it was applied.
func (r *EnrichmentRecord) Category(c Category) (CategoryRecord, bool) {
	for _, cr := range r.Categories {
		if cr.Category == c {
			return cr, true
		}
	}
	return CategoryRecord{}, false
}

// ChangedEntityIDs returns the union of changed entities across categories.
func (r *EnrichmentRecord) ChangedEntityIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, cr := range r.Categories {
		for _, id := range cr.ChangedEntities {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Report renders the record for people.
func (r *EnrichmentRecord) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Enrichment %s for pathway %s at %s\n", r.ID, r.PathwayID, r.CreatedAt.Format(time.RFC3339))
	for _, cr := range r.Categories {
		fmt.Fprintf(&b, "  %s: %s (score %.2f, %s, %s)\n", cr.Category, cr.WinningSource, cr.Score, cr.Confidence, cr.MergePolicy)
		fmt.Fprintf(&b, "    %d entities changed", cr.EntitiesChanged)
		if len(cr.ChangeCounts) > 0 {
			kinds := make([]string, 0, len(cr.ChangeCounts))
			for k := range cr.ChangeCounts {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			parts := make([]string, 0, len(kinds))
			for _, k := range kinds {
				parts = append(parts, fmt.Sprintf("%s=%d", k, cr.ChangeCounts[k]))
			}
			fmt.Fprintf(&b, " [%s]", strings.Join(parts, " "))
		}
		b.WriteString("\n")
		for _, c := range cr.Citations {
			fmt.Fprintf(&b, "    cite: %s\n", c)
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "  %s: skipped (%s) %s\n", s.Category, s.Kind, s.Reason)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}
	return b.String()
}
