package bridge

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/encoding"
	"github.com/effective-security/mcpbridge/pkg/metricskey"
)

// Typed runs bridge queries whose final answer decodes into T. The output
// schema is described to the model through the system prompt, and the answer
// is validated on the way back.
type Typed[T any] struct {
	bridge *Bridge
	parser *encoding.TypedOutputParser[T]
}

// NewTyped wraps the bridge with a typed output parser for T.
func NewTyped[T any](b *Bridge, mode encoding.Mode) (*Typed[T], error) {
	var zero T
	parser, err := encoding.NewTypedOutputParser(zero, mode)
	if err != nil {
		return nil, err
	}
	return &Typed[T]{bridge: b, parser: parser}, nil
}

// Bridge returns the underlying bridge.
func (t *Typed[T]) Bridge() *Bridge {
	return t.bridge
}

// ProcessQuery runs one query and decodes the final answer into T. A
// response that does not match the schema is an error.
func (t *Typed[T]) ProcessQuery(ctx context.Context, query string) (*T, error) {
	cfg := t.bridge.cfg.withFormatInstructions(t.parser.GetFormatInstructions())
	answer, err := t.bridge.processQuery(ctx, cfg, query)
	if err != nil {
		return nil, err
	}

	out, err := t.parser.Parse(answer)
	if err != nil {
		metricskey.StatsLLMParseErrors.IncrCounter(1, t.bridge.name)
		if callback := cfg.CallbackHandler; callback != nil {
			callback.OnLLMParseError(ctx, t.bridge, query, answer, err)
		}
		return nil, errors.WithMessage(err, "failed to parse LLM response")
	}
	return out, nil
}
