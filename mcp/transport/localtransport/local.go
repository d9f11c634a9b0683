package localtransport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp/transport"
)

// Transport is the serving half of the in-process pair: HandleMessage feeds a
// raw JSON-RPC message to the protocol handler and blocks until the handler
// replies through Send. Request ids are rewritten to an internal counter for
// correlation and restored before the reply is returned.
type Transport struct {
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	pending        map[int64]chan *transport.BaseJsonRpcMessage
	counter        int64
}

func New() *Transport {
	return &Transport{
		pending: make(map[int64]chan *transport.BaseJsonRpcMessage),
	}
}

// Start does nothing: the local transport has no connection to open.
func (s *Transport) Start(ctx context.Context) error {
	return nil
}

// Close invokes the close handler, if any.
func (s *Transport) Close() error {
	if s.closeHandler != nil {
		s.closeHandler()
	}
	return nil
}

func (s *Transport) SetErrorHandler(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

func (s *Transport) SetCloseHandler(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandler = handler
}

func (s *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandler = handler
}

// Send delivers the handler's reply to the HandleMessage call blocked on the
// matching internal id.
func (s *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	key := int64(message.MessageID())

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.pending[key]
	if ch == nil {
		return errors.Errorf("no response channel found for key: %d", key)
	}
	ch <- message
	return nil
}

// HandleMessage dispatches one raw message to the handler. Requests block
// until the handler replies; notifications and anything that does not parse
// as a request return an empty response immediately.
func (s *Transport) HandleMessage(ctx context.Context, body []byte) (*transport.BaseJsonRpcMessage, error) {
	msg, err := transport.DeserializeMessage(string(body))
	if err != nil || msg.Type != transport.BaseMessageTypeJSONRPCRequestType {
		if err == nil {
			s.dispatch(ctx, msg)
		}
		return &transport.BaseJsonRpcMessage{
			Type: transport.BaseMessageTypeJSONRPCResponseType,
		}, nil
	}

	key := atomic.AddInt64(&s.counter, 1)
	ch := make(chan *transport.BaseJsonRpcMessage)
	s.mu.Lock()
	s.pending[key] = ch
	s.mu.Unlock()

	callerID := msg.JsonRpcRequest.Id
	msg.JsonRpcRequest.Id = transport.RequestId(key)
	s.dispatch(ctx, msg)

	reply := <-ch

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	// The handler replies with the internal id; put the caller's back.
	if reply.JsonRpcResponse != nil {
		reply.JsonRpcResponse.Id = callerID
	} else if reply.JsonRpcError != nil {
		reply.JsonRpcError.Id = callerID
	}
	return reply, nil
}

func (s *Transport) dispatch(ctx context.Context, msg *transport.BaseJsonRpcMessage) {
	s.mu.RLock()
	handler := s.messageHandler
	s.mu.RUnlock()
	if handler != nil {
		handler(ctx, msg)
	}
}
