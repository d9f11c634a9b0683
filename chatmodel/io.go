package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// InputRequest is a plain text query.
type InputRequest struct {
	Input string `json:"input" yaml:"input" validate:"required" jsonschema:"title=Input,description=The message sent by the user to the assistant."`
}

// NewInputRequest creates a new InputRequest with the given input.
func NewInputRequest(input string) *InputRequest {
	return &InputRequest{Input: input}
}

// ParseInput decodes a raw JSON request.
func (r *InputRequest) ParseInput(raw string) error {
	err := json.Unmarshal([]byte(raw), r)
	if err != nil {
		return errors.WithMessage(ErrFailedUnmarshalInput, err.Error())
	}
	return nil
}

// GetContent gets the content of the message for the chat history
func (r InputRequest) GetContent() string {
	return r.Input
}

func (InputRequest) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.Title = "Input Request"
}

// QueryRequest is a query addressed to a specific chat session.
type QueryRequest struct {
	ChatID string `json:"chatID" yaml:"chatID" validate:"required" jsonschema:"description=The chat session to run the query in."`
	Input  string `json:"input" yaml:"input" validate:"required" jsonschema:"description=The question or request to process."`
}

// ParseInput decodes a raw JSON request.
func (r *QueryRequest) ParseInput(raw string) error {
	err := json.Unmarshal([]byte(raw), r)
	if err != nil {
		return errors.WithMessage(ErrFailedUnmarshalInput, err.Error())
	}
	return nil
}

// GetContent gets the content of the message for the chat history
func (r QueryRequest) GetContent() string {
	return r.Input
}

func (QueryRequest) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.Title = "Query Request"
}
