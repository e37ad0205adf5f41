package model

import "time"

// EntityKind distinguishes the enumerable parts of a pathway.
type EntityKind string

const (
	EntitySpecies  EntityKind = "species"
	EntityReaction EntityKind = "reaction"
)

// Entity is a read-only view of one pathway entity.
type Entity struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Kind  EntityKind `json:"kind"`
	XRefs []string   `json:"xrefs,omitempty"`
}

// FieldValue is a value in an entity's field store together with where it
// came from. An empty Source marks a value entered by a person.
type FieldValue struct {
	Value     any        `json:"value"`
	Unit      string     `json:"unit,omitempty"`
	Source    string     `json:"source,omitempty"`
	Score     float64    `json:"score,omitempty"`
	RecordID  string     `json:"record_id,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Manual reports whether the value was entered by a person.
func (fv FieldValue) Manual() bool {
	return fv.Source == ""
}

// EffectiveScore is the score used for override decisions. Manual values
// count as fully trusted.
func (fv FieldValue) EffectiveScore() float64 {
	if fv.Manual() {
		return 1
	}
	return fv.Score
}

// Pathway is the host's handle on an in-memory pathway model. Enrichers
// read and write only through it. Callers must not run two enrichments
// against the same Pathway at once.
type Pathway interface {
	ID() string
	Entities() []Entity
	Entity(id string) (Entity, bool)

	Field(entityID, key string) (FieldValue, bool)
	SetField(entityID, key string, value FieldValue) error
	DeleteField(entityID, key string) error

	// Layout returns the host-native layout block, if any.
	Layout() (*LayoutBlock, bool)
	// SetLayout replaces the layout block; nil removes it.
	SetLayout(block *LayoutBlock) error

	// CrossReferences maps a source name to that source's id for this pathway.
	CrossReferences() map[string]string
	// LinkRecord adds an enrichment record id to the pathway's metadata.
	LinkRecord(recordID string) error
}

// EntitiesOfKind filters entities by kind, preserving order.
func EntitiesOfKind(p Pathway, kind EntityKind) []Entity {
	var out []Entity
	for _, e := range p.Entities() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
