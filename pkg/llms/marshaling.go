package llms

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Wire envelopes for Message and its content parts, following the OpenAI
// chat schema. A message with a single text part marshals to the compact
// {role, text} form; anything else carries a typed parts array.

type messageJSON struct {
	Role Role   `json:"role"`
	Text string `json:"text,omitempty"`
}

type messagePartsJSON struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// contentPartJSON is the union of all part payloads; Type selects which
// field is set.
type contentPartJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ImageURL     *imageURLJSON     `json:"image_url,omitempty"`
	Binary       *binaryJSON       `json:"binary,omitempty"`
	ToolCall     *toolCallJSON     `json:"tool_call,omitempty"`
	ToolResponse *toolResponseJSON `json:"tool_response,omitempty"`
}

type imageURLJSON struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type binaryJSON struct {
	Data     string `json:"data"` // base64
	MIMEType string `json:"mime_type"`
}

type toolCallJSON struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function"`
}

type toolResponseJSON struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

type textContentJSON struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type imageURLContentJSON struct {
	Type     string       `json:"type"`
	ImageURL imageURLJSON `json:"image_url"`
}

type binaryContentJSON struct {
	Type   string     `json:"type"`
	Binary binaryJSON `json:"binary"`
}

type toolResponseContentJSON struct {
	Type         string           `json:"type"`
	ToolResponse toolResponseJSON `json:"tool_response"`
}

// MarshalJSON implements json.Marshaler for Message.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 1 {
		if tp, ok := m.Parts[0].(TextContent); ok {
			return json.Marshal(messageJSON{Role: m.Role, Text: tp.Text})
		}
	}
	return json.Marshal(messagePartsJSON{Role: m.Role, Parts: m.Parts})
}

// UnmarshalJSON implements json.Unmarshaler for Message. Parts are
// polymorphic, so they are decoded through contentPartJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var msg messageJSON
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	m.Role = msg.Role

	if msg.Text != "" {
		m.Parts = []ContentPart{TextContent{Text: msg.Text}}
		return nil
	}

	var rawMsg map[string]any
	if err := json.Unmarshal(data, &rawMsg); err != nil {
		return err
	}
	partsRaw, ok := rawMsg["parts"]
	if !ok {
		return nil
	}
	partsArray, ok := partsRaw.([]any)
	if !ok {
		return errors.New("parts field must be an array")
	}

	for _, partRaw := range partsArray {
		partData, err := json.Marshal(partRaw)
		if err != nil {
			return err
		}
		var pj contentPartJSON
		if err := json.Unmarshal(partData, &pj); err != nil {
			return err
		}
		part, err := decodeContentPart(pj)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

func decodeContentPart(pj contentPartJSON) (ContentPart, error) {
	switch pj.Type {
	case "text", "":
		return TextContent{Text: pj.Text}, nil
	case "image_url":
		if pj.ImageURL == nil {
			return nil, errors.New("image_url field is required for image_url type")
		}
		return ImageURLContent{
			URL:    pj.ImageURL.URL,
			Detail: pj.ImageURL.Detail,
		}, nil
	case "binary":
		if pj.Binary == nil {
			return nil, errors.New("binary field is required for binary type")
		}
		decoded, err := base64.StdEncoding.DecodeString(pj.Binary.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode binary data")
		}
		return BinaryContent{
			MIMEType: pj.Binary.MIMEType,
			Data:     decoded,
		}, nil
	case "tool_call":
		if pj.ToolCall == nil {
			return nil, errors.New("tool_call field is required for tool_call type")
		}
		return ToolCall{
			ID:           pj.ToolCall.ID,
			Type:         pj.ToolCall.Type,
			FunctionCall: pj.ToolCall.FunctionCall,
		}, nil
	case "tool_response":
		if pj.ToolResponse == nil {
			return nil, errors.New("tool_response field is required for tool_response type")
		}
		return ToolCallResponse{
			ToolCallID: pj.ToolResponse.ToolCallID,
			Name:       pj.ToolResponse.Name,
			Content:    pj.ToolResponse.Content,
		}, nil
	default:
		return nil, errors.Newf("unknown content type: '%s'", pj.Type)
	}
}

// MarshalJSON implements json.Marshaler for TextContent.
func (tc TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(textContentJSON{
		Text: tc.Text,
		Type: "text",
	})
}

// UnmarshalJSON implements json.Unmarshaler for TextContent.
func (tc *TextContent) UnmarshalJSON(data []byte) error {
	var v textContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != "text" {
		return errors.Newf("invalid type for TextContent: %v", v.Type)
	}
	tc.Text = v.Text
	return nil
}

// MarshalJSON implements json.Marshaler for ImageURLContent.
func (iuc ImageURLContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageURLContentJSON{
		Type: "image_url",
		ImageURL: imageURLJSON{
			URL:    iuc.URL,
			Detail: iuc.Detail,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ImageURLContent.
func (iuc *ImageURLContent) UnmarshalJSON(data []byte) error {
	var v imageURLContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != "image_url" {
		return errors.Newf("invalid type for ImageURLContent: %v", v.Type)
	}
	if v.ImageURL.URL == "" {
		return errors.New("missing url field in ImageURLContent")
	}
	iuc.URL = v.ImageURL.URL
	iuc.Detail = v.ImageURL.Detail
	return nil
}

// MarshalJSON implements json.Marshaler for BinaryContent.
func (bc BinaryContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(binaryContentJSON{
		Type: "binary",
		Binary: binaryJSON{
			MIMEType: bc.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(bc.Data),
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for BinaryContent.
func (bc *BinaryContent) UnmarshalJSON(data []byte) error {
	var v binaryContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != "binary" {
		return errors.Newf("invalid type for BinaryContent: %v", v.Type)
	}
	if v.Binary.Data == "" {
		return errors.New("missing data field in BinaryContent")
	}
	if v.Binary.MIMEType == "" {
		return errors.New("missing mime_type field in BinaryContent")
	}
	decoded, err := base64.StdEncoding.DecodeString(v.Binary.Data)
	if err != nil {
		return errors.Wrap(err, "error decoding base64 data")
	}
	bc.MIMEType = v.Binary.MIMEType
	bc.Data = decoded
	return nil
}

// toolCallOrderedJSON pins the marshaled field order to function, id, type.
// Decoding still accepts any order through toolCallJSON.
type toolCallOrderedJSON struct {
	FunctionCall *FunctionCall `json:"function"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
}

// MarshalJSON implements json.Marshaler for ToolCall.
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string              `json:"type"`
		ToolCall toolCallOrderedJSON `json:"tool_call"`
	}{
		Type: "tool_call",
		ToolCall: toolCallOrderedJSON{
			FunctionCall: tc.FunctionCall,
			ID:           tc.ID,
			Type:         tc.Type,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCall. A missing or
// malformed function field decodes to an empty FunctionCall rather than an
// error, since some providers omit it in streamed deltas.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var rawMsg map[string]any
	if err := json.Unmarshal(data, &rawMsg); err != nil {
		return err
	}

	if rawType, ok := rawMsg["type"].(string); !ok || rawType != "tool_call" {
		return errors.Newf("invalid type for ToolCall: %v", rawMsg["type"])
	}
	toolCallRaw, ok := rawMsg["tool_call"].(map[string]any)
	if !ok {
		return errors.New("invalid tool_call field in ToolCall")
	}

	id, ok := toolCallRaw["id"].(string)
	if !ok || id == "" {
		return errors.New("missing id field in ToolCall")
	}
	typ, ok := toolCallRaw["type"].(string)
	if !ok || typ == "" {
		return errors.New("missing type field in ToolCall")
	}

	functionCall := &FunctionCall{}
	if functionMap, ok := toolCallRaw["function"].(map[string]any); ok {
		functionCall.Name, _ = functionMap["name"].(string)
		functionCall.Arguments, _ = functionMap["arguments"].(string)
	}

	tc.ID = id
	tc.Type = typ
	tc.FunctionCall = functionCall
	return nil
}

// MarshalJSON implements json.Marshaler for ToolCallResponse.
func (tc ToolCallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolResponseContentJSON{
		Type: "tool_response",
		ToolResponse: toolResponseJSON{
			ToolCallID: tc.ToolCallID,
			Name:       tc.Name,
			Content:    tc.Content,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCallResponse.
func (tc *ToolCallResponse) UnmarshalJSON(data []byte) error {
	var v toolResponseContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != "tool_response" {
		return errors.Newf("invalid type for ToolCallResponse: %v", v.Type)
	}
	if v.ToolResponse.ToolCallID == "" {
		return errors.New("missing tool_call_id field in ToolCallResponse")
	}
	if v.ToolResponse.Name == "" {
		return errors.New("missing name field in ToolCallResponse")
	}
	if v.ToolResponse.Content == "" {
		return errors.New("missing content field in ToolCallResponse")
	}
	tc.ToolCallID = v.ToolResponse.ToolCallID
	tc.Name = v.ToolResponse.Name
	tc.Content = v.ToolResponse.Content
	return nil
}
