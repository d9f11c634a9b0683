package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	ErrFailedUnmarshalInput  = errors.New("failed to unmarshal input: check the schema and try again")
	ErrFailedUnmarshalOutput = errors.New("failed to unmarshal output: check the schema and try again")
)

// OutputParser parses the output of an LLM call into a typed value.
type OutputParser[T any] interface {
	// Parse decodes the model output. Parsers return
	// ErrFailedUnmarshalInput when the text does not match the schema.
	Parse(text string) (*T, error)
	// GetFormatInstructions returns a string describing the format of the output.
	GetFormatInstructions() string
	// Type returns the string key uniquely identifying this class of parser.
	Type() string
}

// InputParser transforms a raw query before it is handed to the model.
type InputParser func(input string) (string, error)

// ContentProvider supplies the textual content of a message for the chat
// history.
type ContentProvider interface {
	GetContent() string
}

type Stringer interface {
	String() string
}

// Stringify renders a value as text, preferring Stringer, then
// ContentProvider, then JSON.
func Stringify(s any) string {
	switch v := s.(type) {
	case Stringer:
		return v.String()
	case ContentProvider:
		return v.GetContent()
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

// ToBytes renders a value as bytes with the same preference as Stringify.
func ToBytes(s any) []byte {
	switch v := s.(type) {
	case Stringer:
		return []byte(v.String())
	case ContentProvider:
		return []byte(v.GetContent())
	}
	bs, _ := json.Marshal(s)
	return bs
}

// OutputResult is a generic typed answer produced by a query.
type OutputResult struct {
	Content string `json:"content" yaml:"content" jsonschema:"title=Response Content,description=The content returned by agent or tool."`
}

// NewOutputResult creates an OutputResult with the given content.
func NewOutputResult(content string) *OutputResult {
	return &OutputResult{Content: content}
}

// GetContent gets the content of the message for the chat history.
func (o OutputResult) GetContent() string {
	return o.Content
}

// FewShotExample pairs an example prompt with its expected completion.
type FewShotExample struct {
	Prompt     string
	Completion string
}

type FewShotExamples []FewShotExample
