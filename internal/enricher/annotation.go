package enricher

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/idmap"
	"github.com/omicsflow/pathway-enrich/internal/model"
)

const (
	// AnnotationPrefix prefixes annotation field keys.
	AnnotationPrefix = "annotation."
	// NotesKey holds free-text notes.
	NotesKey = AnnotationPrefix + "notes"
)

// Annotation writes controlled-vocabulary resources onto any entity as
// annotation.<qualifier> lists.
type Annotation struct {
	mapper *idmap.Mapper
}

// NewAnnotation creates the annotation enricher. A nil mapper uses the
// default strategies.
func NewAnnotation(mapper *idmap.Mapper) *Annotation {
	if mapper == nil {
		mapper = idmap.New()
	}
	return &Annotation{mapper: mapper}
}

// Category implements Enricher.
func (a *Annotation) Category() model.Category { return model.CategoryAnnotations }

// CanEnrich implements Enricher.
func (a *Annotation) CanEnrich(c model.Category) bool { return c == model.CategoryAnnotations }

// DefaultPolicy keeps whatever annotations are already there.
func (a *Annotation) DefaultPolicy() model.MergePolicy { return model.MergeFillOnly }

func annotationPayload(r model.Result) (*model.AnnotationPayload, error) {
	p, ok := r.Payload.(*model.AnnotationPayload)
	if !ok || p == nil {
		return nil, eris.Errorf("enricher: %s result carries %T, want annotations", r.Source, r.Payload)
	}
	return p, nil
}

func (a *Annotation) mapEntities(p model.Pathway, payload *model.AnnotationPayload) *idmap.Result {
	refs := make([]model.ForeignRef, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		refs = append(refs, e.Entity)
	}
	return a.mapper.Map(refs, p.Entities())
}

// Validate implements Enricher.
func (a *Annotation) Validate(p model.Pathway, r model.Result) Validation {
	payload, err := annotationPayload(r)
	if err != nil {
		return Invalid(model.FailureValidation, err.Error())
	}
	if len(p.Entities()) == 0 {
		return Invalid(model.FailureValidation, "pathway has no entities")
	}
	var warnings []string
	for _, e := range payload.Entries {
		if len(e.Resources) == 0 && strings.TrimSpace(e.Notes) == "" {
			warnings = append(warnings, fmt.Sprintf("entry %s has no resources", e.Entity.ForeignID))
		}
	}
	mapped := a.mapEntities(p, payload)
	if len(mapped.Mappings) == 0 {
		return Invalid(model.FailureMappingIncomplete, "no annotated entity matched the pathway", warnings...)
	}
	if n := len(mapped.Unmapped); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d annotated entities not found in pathway", n))
	}
	return Valid(warnings...)
}

// Apply implements Enricher. Under override-if-better, resource lists are
// merged with what is already there rather than replaced.
func (a *Annotation) Apply(p model.Pathway, r model.Result, opts ApplyOptions) (*model.ChangeSummary, error) {
	payload, err := annotationPayload(r)
	if err != nil {
		return nil, err
	}
	policy := PolicyFor(a, opts)
	mapped := a.mapEntities(p, payload)
	now := stamp(opts)
	sum := newSummary()

	// Group resources per entity and qualifier first so repeated entries
	// for one entity are written once.
	type slot struct {
		entity string
		key    string
	}
	resources := make(map[slot][]string)
	notes := make(map[string][]string)
	var order []slot
	for _, e := range payload.Entries {
		hostID, ok := mapped.Host(e.Entity.ForeignID)
		if !ok {
			continue
		}
		qualifier := strings.TrimSpace(e.Qualifier)
		if qualifier == "" {
			qualifier = "is"
		}
		if len(e.Resources) > 0 {
			s := slot{hostID, AnnotationPrefix + qualifier}
			if _, seen := resources[s]; !seen {
				order = append(order, s)
			}
			resources[s] = union(resources[s], e.Resources)
		}
		if n := strings.TrimSpace(e.Notes); n != "" && !slices.Contains(notes[hostID], n) {
			notes[hostID] = append(notes[hostID], n)
		}
	}

	for _, s := range order {
		current, exists := p.Field(s.entity, s.key)
		if !shouldWrite(current, exists, policy, opts.Score) {
			continue
		}
		next := resources[s]
		if exists {
			have := Strings(current.Value)
			next = union(have, next)
			if len(next) == len(have) {
				continue
			}
		}
		if err := a.write(p, s.entity, s.key, next, r.Source, opts, now, sum); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(notes))
	for id := range notes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		current, exists := p.Field(id, NotesKey)
		if !shouldWrite(current, exists, policy, opts.Score) {
			continue
		}
		if err := a.write(p, id, NotesKey, strings.Join(notes[id], "\n"), r.Source, opts, now, sum); err != nil {
			return nil, err
		}
	}
	return sum.build(), nil
}

func (a *Annotation) write(p model.Pathway, id, key string, value any, source string, opts ApplyOptions, now *time.Time, sum *summary) error {
	entity, _ := p.Entity(id)
	err := p.SetField(id, key, model.FieldValue{
		Value:     value,
		Source:    source,
		Score:     opts.Score,
		RecordID:  opts.RecordID,
		UpdatedAt: now,
	})
	if err != nil {
		return eris.Wrapf(err, "enricher: write %s on %s", key, id)
	}
	sum.touch(entity, key)
	return nil
}

// union merges b into a, dropping case-insensitive duplicates and keeping
// first-seen order.
func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !slices.ContainsFunc(out, func(o string) bool { return strings.EqualFold(o, s) }) {
			out = append(out, s)
		}
	}
	return out
}

// Strings reads a resource list stored in a field. Values decoded from
// JSON arrive as []any.
func Strings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
