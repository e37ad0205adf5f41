package enricher

import (
	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

type fieldKey struct{ entity, key string }

type priorField struct {
	value  model.FieldValue
	exists bool
}

// Tx wraps a pathway and journals every write so a failed apply can be
// undone. Reads see the writes made so far.
type Tx struct {
	model.Pathway

	order  []fieldKey
	fields map[fieldKey]priorField

	layoutSaved bool
	layout      *model.LayoutBlock
}

// Begin starts a journal over p.
func Begin(p model.Pathway) *Tx {
	return &Tx{Pathway: p, fields: make(map[fieldKey]priorField)}
}

// remember journals the current value of a field the first time it is
// written. It returns a func that drops the entry again if the write fails.
func (tx *Tx) remember(entityID, key string) func() {
	k := fieldKey{entityID, key}
	if _, seen := tx.fields[k]; seen {
		return func() {}
	}
	v, ok := tx.Pathway.Field(entityID, key)
	tx.fields[k] = priorField{value: v, exists: ok}
	tx.order = append(tx.order, k)
	return func() {
		delete(tx.fields, k)
		tx.order = tx.order[:len(tx.order)-1]
	}
}

// SetField journals the prior value, then writes.
func (tx *Tx) SetField(entityID, key string, value model.FieldValue) error {
	forget := tx.remember(entityID, key)
	if err := tx.Pathway.SetField(entityID, key, value); err != nil {
		forget()
		return err
	}
	return nil
}

// DeleteField journals the prior value, then deletes.
func (tx *Tx) DeleteField(entityID, key string) error {
	forget := tx.remember(entityID, key)
	if err := tx.Pathway.DeleteField(entityID, key); err != nil {
		forget()
		return err
	}
	return nil
}

// SetLayout journals the prior block, then writes.
func (tx *Tx) SetLayout(block *model.LayoutBlock) error {
	if !tx.layoutSaved {
		tx.layout, _ = tx.Pathway.Layout()
		tx.layout = tx.layout.Clone()
		tx.layoutSaved = true
	}
	return tx.Pathway.SetLayout(block)
}

// LinkRecord is not allowed inside an apply.
func (tx *Tx) LinkRecord(string) error {
	return eris.New("enricher: records are linked by the orchestrator")
}

// Writes is the number of distinct fields and layouts written.
func (tx *Tx) Writes() int {
	n := len(tx.order)
	if tx.layoutSaved {
		n++
	}
	return n
}

// Commit forgets the journal.
func (tx *Tx) Commit() {
	tx.order = nil
	tx.fields = make(map[fieldKey]priorField)
	tx.layoutSaved = false
	tx.layout = nil
}

// Rollback restores every journaled field and the layout, newest first.
func (tx *Tx) Rollback() error {
	var errs []error
	for i := len(tx.order) - 1; i >= 0; i-- {
		k := tx.order[i]
		prior := tx.fields[k]
		var err error
		if prior.exists {
			err = tx.Pathway.SetField(k.entity, k.key, prior.value)
		} else {
			err = tx.Pathway.DeleteField(k.entity, k.key)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if tx.layoutSaved {
		if err := tx.Pathway.SetLayout(tx.layout); err != nil {
			errs = append(errs, err)
		}
	}
	tx.Commit()
	if len(errs) > 0 {
		return eris.Wrapf(errs[0], "enricher: rollback left %d writes unrestored", len(errs))
	}
	return nil
}
