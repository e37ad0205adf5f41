package pathway

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// Decode reads a JSON pathway document.
func Decode(r io.Reader) (*Memory, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "pathway: decode document")
	}
	return FromDocument(doc)
}

// Encode writes the pathway as indented JSON.
func (m *Memory) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Document()); err != nil {
		return eris.Wrap(err, "pathway: encode document")
	}
	return nil
}

// ReadFile loads a pathway document from path.
func ReadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pathway: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	m, err := Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "pathway: read %s", path)
	}
	return m, nil
}

// WriteFile saves the pathway to path, replacing it atomically.
func (m *Memory) WriteFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "pathway: create %s", tmp)
	}
	if err := m.Encode(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "pathway: close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "pathway: replace %s", path)
	}
	return nil
}
