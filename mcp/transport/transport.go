// Package transport defines the JSON-RPC 2.0 framing shared by the MCP
// transports. Messages are partially deserialized into a tagged union so the
// protocol layer can correlate requests, notifications, responses and errors
// without knowing how the bytes travel.
package transport

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// RequestId is a JSON-RPC request identifier.
type RequestId uint64

// JsonRpcBody is the payload of a JSON-RPC result.
type JsonRpcBody any

// BaseMessageType discriminates the kinds of JSON-RPC messages.
type BaseMessageType string

const (
	// BaseMessageTypeJSONRPCRequestType is a request expecting a response.
	BaseMessageTypeJSONRPCRequestType BaseMessageType = "request"
	// BaseMessageTypeJSONRPCNotificationType is a one-way message.
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	// BaseMessageTypeJSONRPCResponseType is a successful response.
	BaseMessageTypeJSONRPCResponseType BaseMessageType = "response"
	// BaseMessageTypeJSONRPCErrorType is an error response.
	BaseMessageTypeJSONRPCErrorType BaseMessageType = "error"
)

// Transport is the message-level connection between a Protocol instance and
// its peer. Implementations are responsible for framing and delivery only;
// correlation and dispatch live in the protocol layer.
type Transport interface {
	// Start begins processing messages on the transport, including any
	// connection steps that might need to be taken.
	Start(ctx context.Context) error

	// Send sends a JSON-RPC message (request, notification or response).
	Send(ctx context.Context, message *BaseJsonRpcMessage) error

	// Close closes the connection.
	Close() error

	// SetCloseHandler sets the callback for when the connection is closed
	// for any reason. This should be invoked when Close() is called as well.
	SetCloseHandler(handler func())

	// SetErrorHandler sets the callback for when an error occurs.
	// Note that errors are not necessarily fatal; they are used for
	// reporting any kind of exceptional condition out of band.
	SetErrorHandler(handler func(err error))

	// SetMessageHandler sets the callback for when a message (request,
	// notification or response) is received over the connection.
	// Partially deserializes the messages to pass a BaseJsonRpcMessage.
	SetMessageHandler(handler func(ctx context.Context, message *BaseJsonRpcMessage))
}

// BaseJSONRPCRequest is a request that expects a response.
type BaseJSONRPCRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	// Params is left unparsed; the method handler decodes it.
	Params json.RawMessage `json:"params"`
	Id     RequestId       `json:"id"`
}

// UnmarshalJSON rejects payloads that do not carry the fields a request
// requires, so callers can probe a raw message against the union members.
func (m *BaseJSONRPCRequest) UnmarshalJSON(data []byte) error {
	probe := struct {
		Jsonrpc *string         `json:"jsonrpc"`
		Method  *string         `json:"method"`
		Params  json.RawMessage `json:"params"`
		Id      *RequestId      `json:"id"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.WithStack(err)
	}
	if probe.Jsonrpc == nil || probe.Method == nil || probe.Id == nil {
		return errors.New("request requires jsonrpc, method and id")
	}
	m.Jsonrpc = *probe.Jsonrpc
	m.Method = *probe.Method
	m.Params = probe.Params
	m.Id = *probe.Id
	return nil
}

// BaseJSONRPCNotification is a one-way message that carries no id.
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// UnmarshalJSON rejects payloads that carry an id, which makes the
// notification probe distinguishable from the request probe.
func (m *BaseJSONRPCNotification) UnmarshalJSON(data []byte) error {
	probe := struct {
		Jsonrpc *string         `json:"jsonrpc"`
		Method  *string         `json:"method"`
		Params  json.RawMessage `json:"params"`
		Id      *RequestId      `json:"id"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.WithStack(err)
	}
	if probe.Jsonrpc == nil || probe.Method == nil {
		return errors.New("notification requires jsonrpc and method")
	}
	if probe.Id != nil {
		return errors.New("notification must not carry an id")
	}
	m.Jsonrpc = *probe.Jsonrpc
	m.Method = *probe.Method
	m.Params = probe.Params
	return nil
}

// BaseJSONRPCResponse is a successful response to a request.
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Id      RequestId       `json:"id"`
}

// UnmarshalJSON requires the result member, so error responses fail the
// response probe and fall through to the error one.
func (m *BaseJSONRPCResponse) UnmarshalJSON(data []byte) error {
	probe := struct {
		Jsonrpc *string         `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Id      *RequestId      `json:"id"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.WithStack(err)
	}
	if probe.Jsonrpc == nil || probe.Id == nil || probe.Result == nil {
		return errors.New("response requires jsonrpc, id and result")
	}
	m.Jsonrpc = *probe.Jsonrpc
	m.Result = probe.Result
	m.Id = *probe.Id
	return nil
}

// BaseJSONRPCErrorInner is the error member of an error response.
type BaseJSONRPCErrorInner struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BaseJSONRPCError is an error response to a request.
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc"`
	Id      RequestId             `json:"id"`
	Error   BaseJSONRPCErrorInner `json:"error"`
}

// UnmarshalJSON requires the error member.
func (m *BaseJSONRPCError) UnmarshalJSON(data []byte) error {
	probe := struct {
		Jsonrpc *string                `json:"jsonrpc"`
		Id      *RequestId             `json:"id"`
		Error   *BaseJSONRPCErrorInner `json:"error"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.WithStack(err)
	}
	if probe.Jsonrpc == nil || probe.Id == nil || probe.Error == nil {
		return errors.New("error response requires jsonrpc, id and error")
	}
	m.Jsonrpc = *probe.Jsonrpc
	m.Id = *probe.Id
	m.Error = *probe.Error
	return nil
}

// BaseJsonRpcMessage is the tagged union passed between transports and the
// protocol layer. Exactly one of the pointers is set, named by Type.
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

// NewBaseMessageRequest wraps a request into the union.
func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

// NewBaseMessageNotification wraps a notification into the union.
func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

// NewBaseMessageResponse wraps a response into the union.
func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

// NewBaseMessageError wraps an error response into the union.
func NewBaseMessageError(errorResponse *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: errorResponse,
	}
}

// MarshalJSON emits the wrapped message directly, without the union envelope.
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	}
	return nil, errors.Newf("unknown message type: %q", m.Type)
}

// MessageID returns the request id of the wrapped message, or 0 for
// notifications, which carry none.
func (m *BaseJsonRpcMessage) MessageID() RequestId {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		if m.JsonRpcRequest != nil {
			return m.JsonRpcRequest.Id
		}
	case BaseMessageTypeJSONRPCResponseType:
		if m.JsonRpcResponse != nil {
			return m.JsonRpcResponse.Id
		}
	case BaseMessageTypeJSONRPCErrorType:
		if m.JsonRpcError != nil {
			return m.JsonRpcError.Id
		}
	}
	return 0
}

// DeserializeMessage probes a raw JSON-RPC message against the union members,
// most specific first. The validating unmarshalers make the order safe: a
// response cannot parse as a request, an error cannot parse as a response.
func DeserializeMessage(line string) (*BaseJsonRpcMessage, error) {
	var request BaseJSONRPCRequest
	if err := json.Unmarshal([]byte(line), &request); err == nil {
		return NewBaseMessageRequest(&request), nil
	}
	var notification BaseJSONRPCNotification
	if err := json.Unmarshal([]byte(line), &notification); err == nil {
		return NewBaseMessageNotification(&notification), nil
	}
	var response BaseJSONRPCResponse
	if err := json.Unmarshal([]byte(line), &response); err == nil {
		return NewBaseMessageResponse(&response), nil
	}
	var errorResponse BaseJSONRPCError
	if err := json.Unmarshal([]byte(line), &errorResponse); err == nil {
		return NewBaseMessageError(&errorResponse), nil
	}
	return nil, errors.Newf("failed to deserialize message: %s", line)
}
