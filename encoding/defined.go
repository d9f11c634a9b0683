package encoding

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/chatmodel"
)

// TypedOutputParser decodes model output into a Go struct using the schema
// encoder for the chosen mode. The encoder's format instructions tell the
// model what shape to produce.
type TypedOutputParser[T any] struct {
	enc      SchemaEncoder
	name     string
	validate bool
}

var _ chatmodel.OutputParser[any] = (*TypedOutputParser[any])(nil)

// NewTypedOutputParser returns a parser for sourceType in the given
// encoding mode. Field names follow the type's encoding tags.
func NewTypedOutputParser[T any](sourceType T, mode Mode) (*TypedOutputParser[T], error) {
	enc, err := PredefinedSchemaEncoder(mode, sourceType)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create encoder")
	}
	return &TypedOutputParser[T]{
		enc:  enc,
		name: fmt.Sprintf("%T parser", sourceType),
	}, nil
}

// WithValidation enables struct-tag validation of parsed values.
func (p *TypedOutputParser[T]) WithValidation(validate bool) {
	p.validate = validate
}

// Parse decodes one model response into T.
func (p *TypedOutputParser[T]) Parse(text string) (*T, error) {
	var target T
	if err := p.enc.Unmarshal([]byte(text), &target); err != nil {
		return nil, errors.WithMessage(chatmodel.ErrFailedUnmarshalOutput, err.Error())
	}
	if v, ok := p.enc.(Validator); ok && p.validate {
		if err := v.Validate(target); err != nil {
			return nil, errors.Wrap(err, "failed to validate")
		}
	}
	return &target, nil
}

// GetFormatInstructions returns the encoder's schema prompt.
func (p *TypedOutputParser[T]) GetFormatInstructions() string {
	return p.enc.GetFormatInstructions()
}

// Type identifies this parser class.
func (p *TypedOutputParser[T]) Type() string {
	return p.name
}
