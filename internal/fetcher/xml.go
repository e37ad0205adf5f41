package fetcher

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// NewXMLDecoder returns a decoder that understands any charset named in the
// XML prolog. Pathway exports are commonly ISO-8859-1.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return d
}

// DecodeXML unmarshals a whole document into v.
func DecodeXML(data []byte, v any) error {
	if err := NewXMLDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return eris.Wrap(err, "xml: decode document")
	}
	return nil
}
