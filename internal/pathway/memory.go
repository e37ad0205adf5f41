// Package pathway provides an in-memory pathway handle and a JSON document
// format for moving pathways in and out of the CLI and HTTP server.
package pathway

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// Document is the serialized form of a pathway.
type Document struct {
	ID              string                                  `json:"id"`
	Name            string                                  `json:"name,omitempty"`
	Entities        []model.Entity                          `json:"entities"`
	Fields          map[string]map[string]model.FieldValue `json:"fields,omitempty"`
	Layout          *model.LayoutBlock                      `json:"layout,omitempty"`
	CrossReferences map[string]string                       `json:"cross_references,omitempty"`
	Records         []string                                `json:"enrichment_records,omitempty"`
}

// Memory is a model.Pathway held entirely in memory. Methods are safe for
// concurrent use, although enrichment itself expects a single writer.
type Memory struct {
	mu      sync.RWMutex
	doc     Document
	byID    map[string]int
	touched time.Time
}

var _ model.Pathway = (*Memory)(nil)

// New creates a pathway with the given entities.
func New(id string, entities ...model.Entity) (*Memory, error) {
	return FromDocument(Document{ID: id, Entities: entities})
}

// FromDocument builds a pathway from a document. Entity ids must be unique
// and fields may only refer to known entities.
func FromDocument(doc Document) (*Memory, error) {
	if doc.ID == "" {
		return nil, eris.New("pathway: id is required")
	}
	m := &Memory{byID: make(map[string]int, len(doc.Entities))}
	for i, e := range doc.Entities {
		if e.ID == "" {
			return nil, eris.Errorf("pathway: entity %d has no id", i)
		}
		if _, dup := m.byID[e.ID]; dup {
			return nil, eris.Errorf("pathway: duplicate entity id %q", e.ID)
		}
		m.byID[e.ID] = i
	}
	for id := range doc.Fields {
		if _, ok := m.byID[id]; !ok {
			return nil, eris.Errorf("pathway: fields for unknown entity %q", id)
		}
	}
	m.doc = cloneDocument(doc)
	if m.doc.Fields == nil {
		m.doc.Fields = make(map[string]map[string]model.FieldValue)
	}
	return m, nil
}

// Document returns a deep copy of the pathway's current state.
func (m *Memory) Document() Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDocument(m.doc)
}

// ID implements model.Pathway.
func (m *Memory) ID() string { return m.doc.ID }

// Name is the pathway's display name.
func (m *Memory) Name() string { return m.doc.Name }

// Entities implements model.Pathway.
func (m *Memory) Entities() []model.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Entity, len(m.doc.Entities))
	for i, e := range m.doc.Entities {
		e.XRefs = slices.Clone(e.XRefs)
		out[i] = e
	}
	return out
}

// Entity implements model.Pathway.
func (m *Memory) Entity(id string) (model.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return model.Entity{}, false
	}
	e := m.doc.Entities[i]
	e.XRefs = slices.Clone(e.XRefs)
	return e, true
}

// Field implements model.Pathway.
func (m *Memory) Field(entityID, key string) (model.FieldValue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fv, ok := m.doc.Fields[entityID][key]
	return fv, ok
}

// Fields returns a copy of all fields of one entity.
func (m *Memory) Fields(entityID string) map[string]model.FieldValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.doc.Fields[entityID])
}

// SetField implements model.Pathway.
func (m *Memory) SetField(entityID, key string, value model.FieldValue) error {
	if key == "" {
		return eris.New("pathway: field key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[entityID]; !ok {
		return eris.Errorf("pathway: unknown entity %q", entityID)
	}
	fields := m.doc.Fields[entityID]
	if fields == nil {
		fields = make(map[string]model.FieldValue)
		m.doc.Fields[entityID] = fields
	}
	fields[key] = value
	m.touched = time.Now().UTC()
	return nil
}

// DeleteField implements model.Pathway. Deleting a missing field is not an
// error.
func (m *Memory) DeleteField(entityID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[entityID]; !ok {
		return eris.Errorf("pathway: unknown entity %q", entityID)
	}
	delete(m.doc.Fields[entityID], key)
	if len(m.doc.Fields[entityID]) == 0 {
		delete(m.doc.Fields, entityID)
	}
	m.touched = time.Now().UTC()
	return nil
}

// Layout implements model.Pathway.
func (m *Memory) Layout() (*model.LayoutBlock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc.Layout == nil {
		return nil, false
	}
	return m.doc.Layout.Clone(), true
}

// SetLayout implements model.Pathway. Boxes must refer to known entities.
func (m *Memory) SetLayout(block *model.LayoutBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if block != nil {
		for id := range block.Boxes {
			if _, ok := m.byID[id]; !ok {
				return eris.Errorf("pathway: layout places unknown entity %q", id)
			}
		}
	}
	m.doc.Layout = block.Clone()
	m.touched = time.Now().UTC()
	return nil
}

// CrossReferences implements model.Pathway.
func (m *Memory) CrossReferences() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.doc.CrossReferences)
}

// SetCrossReference records the id a source uses for this pathway.
func (m *Memory) SetCrossReference(source, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc.CrossReferences == nil {
		m.doc.CrossReferences = make(map[string]string)
	}
	m.doc.CrossReferences[source] = id
}

// LinkRecord implements model.Pathway. Linking the same record twice is a
// no-op.
func (m *Memory) LinkRecord(recordID string) error {
	if recordID == "" {
		return eris.New("pathway: record id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.doc.Records, recordID) {
		m.doc.Records = append(m.doc.Records, recordID)
	}
	return nil
}

// Records returns the linked enrichment record ids, oldest first.
func (m *Memory) Records() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.doc.Records)
}

// ModifiedAt is when the pathway last changed in memory, or zero.
func (m *Memory) ModifiedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.touched
}

func cloneDocument(d Document) Document {
	out := d
	out.Entities = make([]model.Entity, len(d.Entities))
	for i, e := range d.Entities {
		e.XRefs = slices.Clone(e.XRefs)
		out.Entities[i] = e
	}
	if d.Fields != nil {
		out.Fields = make(map[string]map[string]model.FieldValue, len(d.Fields))
		for id, f := range d.Fields {
			out.Fields[id] = maps.Clone(f)
		}
	}
	out.Layout = d.Layout.Clone()
	out.CrossReferences = maps.Clone(d.CrossReferences)
	out.Records = slices.Clone(d.Records)
	return out
}
