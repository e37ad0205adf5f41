// Package enricher writes a winning Result's payload into a pathway.
package enricher

import (
	"slices"
	"sort"
	"time"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// Validation is the outcome of checking a Result against a pathway before
// any mutation. A failed validation skips the category.
type Validation struct {
	OK       bool
	Kind     model.FailureKind
	Reason   string
	Warnings []string
}

// Valid returns a passing Validation.
func Valid(warnings ...string) Validation {
	return Validation{OK: true, Warnings: warnings}
}

// Invalid returns a failing Validation of the given kind.
func Invalid(kind model.FailureKind, reason string, warnings ...string) Validation {
	return Validation{Kind: kind, Reason: reason, Warnings: warnings}
}

// ApplyOptions carries per-invocation settings into Apply.
type ApplyOptions struct {
	// Policy overrides the enricher's default merge policy.
	Policy model.MergePolicy
	// Score is the winning Result's overall score, stored with each value.
	Score    float64
	RecordID string
	Now      time.Time
}

// Enricher merges one category's payload into a pathway. Implementations
// are stateless and write only through the pathway handle.
type Enricher interface {
	Category() model.Category
	CanEnrich(c model.Category) bool
	DefaultPolicy() model.MergePolicy
	Validate(p model.Pathway, r model.Result) Validation
	Apply(p model.Pathway, r model.Result, opts ApplyOptions) (*model.ChangeSummary, error)
}

// Registry looks enrichers up by category.
type Registry struct {
	byCategory map[model.Category]Enricher
}

// NewRegistry creates a registry. A later enricher for the same category
// replaces an earlier one.
func NewRegistry(enrichers ...Enricher) *Registry {
	r := &Registry{byCategory: make(map[model.Category]Enricher, len(enrichers))}
	for _, e := range enrichers {
		r.Register(e)
	}
	return r
}

// Register adds an enricher.
func (r *Registry) Register(e Enricher) {
	r.byCategory[e.Category()] = e
}

// For returns the enricher for c.
func (r *Registry) For(c model.Category) (Enricher, bool) {
	e, ok := r.byCategory[c]
	return e, ok
}

// Categories lists the registered categories, sorted.
func (r *Registry) Categories() []model.Category {
	out := make([]model.Category, 0, len(r.byCategory))
	for c := range r.byCategory {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// PolicyFor resolves the merge policy for one apply.
func PolicyFor(e Enricher, opts ApplyOptions) model.MergePolicy {
	if opts.Policy.Valid() {
		return opts.Policy
	}
	return e.DefaultPolicy()
}

// shouldWrite decides whether a new value with score replaces current.
// Values entered by a person are never replaced.
func shouldWrite(current model.FieldValue, exists bool, policy model.MergePolicy, score float64) bool {
	if !exists {
		return true
	}
	if current.Manual() {
		return false
	}
	return policy == model.MergeOverrideIfBetter && score > current.EffectiveScore()
}

// summary accumulates a ChangeSummary.
type summary struct {
	entities map[string]model.EntityKind
	fields   map[string]bool
	warnings []string
	extra    map[string]int
}

func newSummary() *summary {
	return &summary{
		entities: make(map[string]model.EntityKind),
		fields:   make(map[string]bool),
		extra:    make(map[string]int),
	}
}

func (s *summary) touch(e model.Entity, key string) {
	s.entities[e.ID] = e.Kind
	s.fields[key] = true
}

func (s *summary) warn(msg string) {
	s.warnings = append(s.warnings, msg)
}

func (s *summary) build() *model.ChangeSummary {
	out := &model.ChangeSummary{
		EntitiesChanged: len(s.entities),
		ChangeCounts:    make(map[string]int),
		Warnings:        s.warnings,
	}
	for id, kind := range s.entities {
		out.ChangedEntities = append(out.ChangedEntities, id)
		out.ChangeCounts[string(kind)]++
	}
	for k, n := range s.extra {
		out.ChangeCounts[k] += n
	}
	for f := range s.fields {
		out.FieldsTouched = append(out.FieldsTouched, f)
	}
	sort.Strings(out.ChangedEntities)
	sort.Strings(out.FieldsTouched)
	return out
}

func stamp(opts ApplyOptions) *time.Time {
	t := opts.Now
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return &t
}
