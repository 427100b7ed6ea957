package format

import (
	"encoding"
	"fmt"
	"io"

	"github.com/dhamidi/perlex/perl/document"
)

type Encoder interface {
	encoding.TextMarshaler
	Encode(report *document.Report) error
}

// NewEncoder returns the encoder registered under name.
func NewEncoder(name string, w io.Writer) (Encoder, error) {
	switch name {
	case "json":
		return NewJSONEncoder(w), nil
	case "text":
		return NewTextEncoder(w), nil
	}
	return nil, fmt.Errorf("unknown format: %s", name)
}
