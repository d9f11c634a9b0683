// Package localtransport provides an in-process transport pair: a client
// half that hands serialized messages to a Handler, and a serving half that
// feeds them to a protocol instance and relays its replies.
package localtransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp/transport"
)

// McpProxyRequest carries one serialized JSON-RPC message to the handler.
type McpProxyRequest struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// McpProxyResponse is the handler's reply: an HTTP-style status and the raw
// reply message, empty for notifications.
type McpProxyResponse struct {
	Type    transport.BaseMessageType `json:"type"`
	Status  int                       `json:"status"`
	Body    []byte                    `json:"body"`
	Headers map[string]string         `json:"headers"`
}

// Handler serves MCP messages in-process, typically backed by the serving
// Transport's HandleMessage.
type Handler interface {
	HandleMCP(ctx context.Context, req *McpProxyRequest) (*McpProxyResponse, error)
}

// LocalMcpClientTransport is the client half of the pair. Send is
// synchronous: the handler's reply is delivered to the message handler
// before Send returns.
type LocalMcpClientTransport struct {
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	handler        Handler
	headers        map[string]string
}

// NewLocalClientTransport creates a client transport backed by the given
// handler.
func NewLocalClientTransport(handler Handler) *LocalMcpClientTransport {
	return &LocalMcpClientTransport{
		handler: handler,
		headers: make(map[string]string),
	}
}

// WithHeader adds a header sent with every proxied message.
func (t *LocalMcpClientTransport) WithHeader(key, value string) *LocalMcpClientTransport {
	t.headers[key] = value
	return t
}

// Start does nothing: there is no connection to open.
func (t *LocalMcpClientTransport) Start(ctx context.Context) error {
	return nil
}

// Send serializes the message, hands it to the handler and forwards the
// reply, if any, to the message handler.
func (t *LocalMcpClientTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	resp, err := t.handler.HandleMCP(ctx, &McpProxyRequest{
		Body:    body,
		Headers: t.headers,
	})
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return errors.Errorf("server returned error: %d", resp.Status)
	}
	if len(resp.Body) == 0 {
		return nil
	}

	reply, err := transport.DeserializeMessage(string(resp.Body))
	if err != nil {
		return errors.New("received invalid response")
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(ctx, reply)
	}
	return nil
}

// Close invokes the close handler, if any.
func (t *LocalMcpClientTransport) Close() error {
	if t.closeHandler != nil {
		t.closeHandler()
	}
	return nil
}

func (t *LocalMcpClientTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

func (t *LocalMcpClientTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

func (t *LocalMcpClientTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
