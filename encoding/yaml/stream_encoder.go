package yaml

import (
	"bytes"
	"context"
	"reflect"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StreamEncoder parses a stream of text chunks into typed values. Documents
// are separated by blank lines; each complete document is decoded and sent
// on the channel returned by Read.
type StreamEncoder struct {
	reqType  reflect.Type
	buffer   *bytes.Buffer
	validate bool
}

func NewStreamEncoder(req any) (*StreamEncoder, error) {
	return &StreamEncoder{
		reqType: reflect.TypeOf(req),
		buffer:  new(bytes.Buffer),
	}, nil
}

func (e *StreamEncoder) EnableValidate() {
	e.validate = true
}

func (e *StreamEncoder) Validate(req any) error {
	return validator.New().Struct(req)
}

func (e *StreamEncoder) Marshal(req any) ([]byte, error) {
	return yaml.Marshal(req)
}

func (e *StreamEncoder) GetFormatInstructions() string {
	var b bytes.Buffer
	b.WriteString("\nRespond with a YAML array where the elements following YAML schema which is separated by a blank line for each element:\n\n")
	for i := range 3 {
		if i > 0 {
			b.WriteString("\n\n")
		}
		instance := reflect.New(e.reqType).Interface()
		if f, ok := instance.(schema.Faker); ok {
			instance = f.Fake()
		} else {
			_ = gofakeit.Struct(instance)
		}
		bs, err := e.Marshal(instance)
		if err != nil {
			return ""
		}
		b.Write(bs)
	}
	b.WriteString("\nMake sure to return an array with the elements an instance of the YAML, not the schema itself.\n")
	return b.String()
}

var (
	fencePrefix = []byte("```yaml")
	fenceSuffix = []byte("```")
)

// Read consumes text chunks from ch and emits one decoded value per
// blank-line separated document. The returned channel is closed when ch is
// closed or ctx is done; a trailing document without a final blank line is
// still emitted.
func (e *StreamEncoder) Read(ctx context.Context, ch <-chan string) <-chan any {
	out := make(chan any)
	e.buffer.Reset()
	go func() {
		defer close(out)
		defer e.buffer.Reset()
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-ch:
				if !ok {
					e.emit(e.buffer.Bytes(), out)
					return
				}
				e.buffer.WriteString(text)
				e.processBuffer(out)
			}
		}
	}()
	return out
}

// processBuffer walks complete lines in the buffer, collecting them into the
// current document and emitting it on each blank line. The trailing partial
// document is kept in the buffer for the next chunk.
func (e *StreamEncoder) processBuffer(out chan<- any) {
	var block bytes.Buffer
	data := e.buffer.Bytes()
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i+1]
			data = data[i+1:]
		} else {
			data = nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			e.emit(block.Bytes(), out)
			block.Reset()
		} else {
			block.Write(line)
		}
	}
	e.buffer.Reset()
	e.buffer.Write(block.Bytes())
}

func (e *StreamEncoder) emit(block []byte, out chan<- any) {
	in := bytes.TrimSpace(block)
	in = bytes.TrimPrefix(in, fencePrefix)
	in = bytes.TrimSuffix(in, fenceSuffix)
	if len(in) == 0 {
		return
	}
	instance := reflect.New(e.reqType).Interface()
	if err := yaml.Unmarshal(in, instance); err != nil {
		return
	}
	if e.validate {
		if err := e.Validate(instance); err != nil {
			return
		}
	}
	out <- instance
}
