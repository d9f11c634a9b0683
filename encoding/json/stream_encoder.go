package json

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"

	"github.com/effective-security/mcpbridge/pkg/llmutils"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/go-playground/validator/v10"
)

// StreamWrapper is the wire shape the model is asked to produce: a single
// object with an "items" array, so elements can be parsed as they arrive.
type StreamWrapper[T any] struct {
	Items []T `json:"items"`
}

// itemsMarker is the last token before the element stream starts.
var itemsMarker = []byte(`"items": [`)

// StreamEncoder parses a streamed StreamWrapper response into typed values,
// emitting each completed element of the items array as it arrives.
type StreamEncoder struct {
	schema   *schema.Schema
	reqType  reflect.Type
	buffer   *bytes.Buffer
	validate bool
}

func NewStreamEncoder(req any, validate bool) (*StreamEncoder, error) {
	t := reflect.TypeOf(req)
	wrapper := reflect.StructOf([]reflect.StructField{
		{
			Name: "Items",
			Type: reflect.SliceOf(t),
			Tag:  `json:"items"`,
		},
	})
	s, err := schema.New(wrapper)
	if err != nil {
		return nil, err
	}
	return &StreamEncoder{
		schema:   s,
		reqType:  t,
		buffer:   new(bytes.Buffer),
		validate: validate,
	}, nil
}

func (e *StreamEncoder) EnableValidate() {
	e.validate = true
}

func (e *StreamEncoder) Schema() *schema.Schema {
	return e.schema
}

func (e *StreamEncoder) Validate(req any) error {
	return validator.New().Struct(req)
}

func (e *StreamEncoder) Marshal(req any) ([]byte, error) {
	return []byte(e.schema.String()), nil
}

func (e *StreamEncoder) GetFormatInstructions() string {
	bs, err := e.Marshal(nil)
	if err != nil {
		return ""
	}
	var b bytes.Buffer
	b.WriteString("\nRespond with a JSON array where the elements following JSON schema:\n")
	b.WriteString("```json\n")
	b.Write(bs)
	b.WriteString("\n```")
	b.WriteString("\nMake sure to return an array with the elements an instance of the JSON, not the schema itself.\n")
	return b.String()
}

// Read consumes text chunks from ch and emits one decoded value per
// completed element of the wrapper's items array. The returned channel is
// closed when ch is closed or ctx is done.
func (e *StreamEncoder) Read(ctx context.Context, ch <-chan string) <-chan any {
	out := make(chan any)
	e.buffer.Reset()
	go func() {
		defer close(out)

		inArray := false
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-ch:
				if !ok {
					e.processRemainingBuffer(out)
					return
				}

				e.buffer.WriteString(text)
				// skip everything up to the start of the items array
				if !inArray {
					inArray = e.enterArray()
				}
				if inArray {
					e.processBuffer(out)
				}
			}
		}
	}()
	return out
}

// enterArray discards buffered input through the items marker. It reports
// whether the element stream has started.
func (e *StreamEncoder) enterArray() bool {
	data := e.buffer.Bytes()
	idx := bytes.Index(data, itemsMarker)
	if idx == -1 {
		return false
	}
	rest := bytes.TrimSpace(data[idx+len(itemsMarker):])
	e.buffer.Reset()
	e.buffer.Write(rest)
	return true
}

func (e *StreamEncoder) processBuffer(out chan<- any) {
	element, remaining := firstCompleteElement(e.buffer.Bytes())

	decoder := json.NewDecoder(bytes.NewReader(element))
	for decoder.More() {
		instance := reflect.New(e.reqType).Interface()
		if err := decoder.Decode(instance); err != nil {
			break
		}
		if e.validate {
			if err := e.Validate(instance); err != nil {
				break
			}
		}

		out <- instance

		e.buffer.Reset()
		e.buffer.Write(remaining)
	}
}

// processRemainingBuffer flushes whatever is left once the stream closes,
// dropping the wrapper's closing bracket.
func (e *StreamEncoder) processRemainingBuffer(out chan<- any) {
	remaining := llmutils.CleanJSON(e.buffer.Bytes())
	if idx := bytes.LastIndexByte(remaining, ']'); idx != -1 {
		remaining = remaining[:idx]
	}
	e.buffer.Reset()
	e.buffer.Write(remaining)

	e.processBuffer(out)
}

// firstCompleteElement splits bs into the first brace-balanced object and
// the bytes after it, skipping a separating comma. It returns a nil element
// when no object is complete yet.
func firstCompleteElement(bs []byte) (element []byte, remaining []byte) {
	depth := 0
	started := false
	for i, b := range bs {
		switch b {
		case '{':
			depth++
			started = true
		case '}':
			if !started {
				return nil, bs
			}
			depth--
			if depth == 0 {
				element = bs[:i+1]
				remaining = bs[i+1:]
				if len(remaining) > 0 && remaining[0] == ',' {
					remaining = remaining[1:]
				}
				return element, remaining
			}
		}
	}
	return nil, bs
}
