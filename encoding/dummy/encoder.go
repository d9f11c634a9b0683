// Package dummy implements the plain-text encoding mode: values pass through
// as strings, no schema and no format instructions are produced.
package dummy

import (
	"encoding/json"
)

// Stringer renders a value as its plain-text form.
type Stringer interface {
	String() string
}

// Unmarshaler lets a type consume the raw model output directly.
type Unmarshaler interface {
	Unmarshal(bs []byte) error
}

// Encoder passes string-like values through untouched and falls back to JSON
// for everything else.
type Encoder struct{}

func NewEncoder() *Encoder {
	return new(Encoder)
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case Stringer:
		return []byte(t.String()), nil
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case *string:
		return []byte(*t), nil
	case *[]byte:
		return *t, nil
	}
	return json.Marshal(v)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	switch t := ret.(type) {
	case Unmarshaler:
		return t.Unmarshal(bs)
	case *string:
		*t = string(bs)
	case *[]byte:
		*t = bs
	default:
		return json.Unmarshal(bs, ret)
	}
	return nil
}

// Validate accepts everything: plain text has no schema to check against.
func (e *Encoder) Validate(any) error {
	return nil
}

func (e *Encoder) GetFormatInstructions() string {
	return ""
}
