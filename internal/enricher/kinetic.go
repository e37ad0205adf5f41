package enricher

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/idmap"
	"github.com/omicsflow/pathway-enrich/internal/model"
)

// KineticPrefix prefixes kinetic parameter field keys.
const KineticPrefix = "kinetics."

// Kinetic writes kinetic parameters onto reaction entities as
// kinetics.<parameter> fields.
type Kinetic struct {
	mapper *idmap.Mapper
}

// NewKinetic creates the kinetic enricher. A nil mapper uses the default
// strategies.
func NewKinetic(mapper *idmap.Mapper) *Kinetic {
	if mapper == nil {
		mapper = idmap.New()
	}
	return &Kinetic{mapper: mapper}
}

// Category implements Enricher.
func (k *Kinetic) Category() model.Category { return model.CategoryKinetics }

// CanEnrich implements Enricher.
func (k *Kinetic) CanEnrich(c model.Category) bool { return c == model.CategoryKinetics }

// DefaultPolicy prefers measured values from better sources.
func (k *Kinetic) DefaultPolicy() model.MergePolicy { return model.MergeOverrideIfBetter }

func kineticPayload(r model.Result) (*model.KineticPayload, error) {
	p, ok := r.Payload.(*model.KineticPayload)
	if !ok || p == nil {
		return nil, eris.Errorf("enricher: %s result carries %T, want kinetic parameters", r.Source, r.Payload)
	}
	return p, nil
}

// usable reports whether a parameter can be written at all.
func usable(kp model.KineticParameter) bool {
	return strings.TrimSpace(kp.Name) != "" &&
		!math.IsNaN(kp.Value) && !math.IsInf(kp.Value, 0) && kp.Value >= 0
}

func (k *Kinetic) mapReactions(p model.Pathway, payload *model.KineticPayload) *idmap.Result {
	refs := make([]model.ForeignRef, 0, len(payload.Parameters))
	for _, kp := range payload.Parameters {
		refs = append(refs, kp.Reaction)
	}
	return k.mapper.Map(refs, model.EntitiesOfKind(p, model.EntityReaction))
}

// Validate implements Enricher. It fails when the pathway has no reactions
// or no usable parameter maps onto one.
func (k *Kinetic) Validate(p model.Pathway, r model.Result) Validation {
	payload, err := kineticPayload(r)
	if err != nil {
		return Invalid(model.FailureValidation, err.Error())
	}
	if len(model.EntitiesOfKind(p, model.EntityReaction)) == 0 {
		return Invalid(model.FailureValidation, "pathway has no reactions")
	}

	var warnings []string
	var good int
	for _, kp := range payload.Parameters {
		if usable(kp) {
			good++
			continue
		}
		warnings = append(warnings, fmt.Sprintf("parameter %q of %s rejected: value %v", kp.Name, kp.Reaction.ForeignID, kp.Value))
	}
	if good == 0 {
		return Invalid(model.FailureValidation, "no usable kinetic parameters", warnings...)
	}

	mapped := k.mapReactions(p, payload)
	if len(mapped.Mappings) == 0 {
		return Invalid(model.FailureMappingIncomplete, "no reaction matched a pathway reaction", warnings...)
	}
	if n := len(mapped.Unmapped); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d reactions not found in pathway", n))
	}
	return Valid(warnings...)
}

// Apply implements Enricher. When a payload repeats a parameter for the
// same reaction, the first occurrence is used.
func (k *Kinetic) Apply(p model.Pathway, r model.Result, opts ApplyOptions) (*model.ChangeSummary, error) {
	payload, err := kineticPayload(r)
	if err != nil {
		return nil, err
	}
	policy := PolicyFor(k, opts)
	mapped := k.mapReactions(p, payload)
	now := stamp(opts)
	sum := newSummary()
	written := make(map[fieldKey]bool)

	for _, kp := range payload.Parameters {
		if !usable(kp) {
			continue
		}
		hostID, ok := mapped.Host(kp.Reaction.ForeignID)
		if !ok {
			continue
		}
		entity, _ := p.Entity(hostID)
		key := KineticPrefix + strings.ToLower(strings.TrimSpace(kp.Name))

		fk := fieldKey{hostID, key}
		if written[fk] {
			sum.warn(fmt.Sprintf("duplicate %s for %s from %s ignored", key, hostID, r.Source))
			continue
		}
		written[fk] = true

		current, exists := p.Field(hostID, key)
		if !shouldWrite(current, exists, policy, opts.Score) {
			continue
		}
		fv := model.FieldValue{
			Value:     kp.Value,
			Unit:      kp.Unit,
			Source:    r.Source,
			Score:     opts.Score,
			RecordID:  opts.RecordID,
			UpdatedAt: now,
		}
		if err := p.SetField(hostID, key, fv); err != nil {
			return nil, eris.Wrapf(err, "enricher: write %s on %s", key, hostID)
		}
		sum.touch(entity, key)
	}
	return sum.build(), nil
}
