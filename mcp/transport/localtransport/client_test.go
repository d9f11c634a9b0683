package localtransport_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/effective-security/mcpbridge/mcp/transport"
	"github.com/effective-security/mcpbridge/mcp/transport/localtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedHandler struct {
	handleFunc func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error)
}

func (m *scriptedHandler) HandleMCP(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
	return m.handleFunc(ctx, req)
}

func okResponse(body string) *localtransport.McpProxyResponse {
	return &localtransport.McpProxyResponse{
		Status:  http.StatusOK,
		Body:    []byte(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

func pingRequest(id uint64) *transport.BaseJsonRpcMessage {
	return transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  "ping",
		Id:      transport.RequestId(id),
	})
}

func Test_ClientTransport_SendDispatchesReply(t *testing.T) {
	handler := &scriptedHandler{
		handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
			assert.NotEmpty(t, req.Body)
			return okResponse(`{"jsonrpc":"2.0","result":{"status":"ok"},"id":1}`), nil
		},
	}
	client := localtransport.NewLocalClientTransport(handler)
	require.NoError(t, client.Start(context.Background()))

	var received *transport.BaseJsonRpcMessage
	client.SetMessageHandler(func(ctx context.Context, msg *transport.BaseJsonRpcMessage) {
		received = msg
	})

	require.NoError(t, client.Send(context.Background(), pingRequest(1)))
	require.NotNil(t, received)
	assert.Equal(t, transport.BaseMessageTypeJSONRPCResponseType, received.Type)
	assert.Equal(t, transport.RequestId(1), received.JsonRpcResponse.Id)
}

func Test_ClientTransport_SendDispatchesErrorReply(t *testing.T) {
	handler := &scriptedHandler{
		handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
			return okResponse(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":1}`), nil
		},
	}
	client := localtransport.NewLocalClientTransport(handler)

	var received *transport.BaseJsonRpcMessage
	client.SetMessageHandler(func(ctx context.Context, msg *transport.BaseJsonRpcMessage) {
		received = msg
	})

	require.NoError(t, client.Send(context.Background(), pingRequest(1)))
	require.NotNil(t, received)
	assert.Equal(t, transport.BaseMessageTypeJSONRPCErrorType, received.Type)
	assert.Equal(t, -32601, received.JsonRpcError.Error.Code)
}

func Test_ClientTransport_SendEmptyBody(t *testing.T) {
	handler := &scriptedHandler{
		handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
			return &localtransport.McpProxyResponse{Status: http.StatusOK}, nil
		},
	}
	client := localtransport.NewLocalClientTransport(handler)

	called := false
	client.SetMessageHandler(func(ctx context.Context, msg *transport.BaseJsonRpcMessage) {
		called = true
	})

	// notifications get no reply body; nothing to dispatch
	require.NoError(t, client.Send(context.Background(), pingRequest(1)))
	assert.False(t, called)
}

func Test_ClientTransport_SendFailures(t *testing.T) {
	t.Run("handler error", func(t *testing.T) {
		client := localtransport.NewLocalClientTransport(&scriptedHandler{
			handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
				return nil, assert.AnError
			},
		})
		err := client.Send(context.Background(), pingRequest(1))
		require.Error(t, err)
		assert.Equal(t, assert.AnError, err)
	})

	t.Run("non-OK status", func(t *testing.T) {
		client := localtransport.NewLocalClientTransport(&scriptedHandler{
			handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
				return &localtransport.McpProxyResponse{
					Status: http.StatusInternalServerError,
					Body:   []byte(`{"error":"internal server error"}`),
				}, nil
			},
		})
		err := client.Send(context.Background(), pingRequest(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server returned error: 500")
	})

	t.Run("unparseable reply", func(t *testing.T) {
		client := localtransport.NewLocalClientTransport(&scriptedHandler{
			handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
				return okResponse(`not json`), nil
			},
		})
		err := client.Send(context.Background(), pingRequest(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "received invalid response")
	})
}

func Test_ClientTransport_Headers(t *testing.T) {
	handler := &scriptedHandler{
		handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
			assert.Equal(t, "Bearer token", req.Headers["Authorization"])
			assert.Equal(t, "custom-value", req.Headers["X-Custom-Header"])
			return okResponse(`{"jsonrpc":"2.0","result":{},"id":1}`), nil
		},
	}
	client := localtransport.NewLocalClientTransport(handler).
		WithHeader("Authorization", "Bearer token").
		WithHeader("X-Custom-Header", "custom-value")

	require.NoError(t, client.Send(context.Background(), pingRequest(1)))
}

func Test_ClientTransport_Close(t *testing.T) {
	client := localtransport.NewLocalClientTransport(&scriptedHandler{})

	// no handler set
	require.NoError(t, client.Close())

	closeCount := 0
	client.SetCloseHandler(func() { closeCount++ })
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, 2, closeCount)
}

func Test_ClientTransport_ConcurrentSends(t *testing.T) {
	handler := &scriptedHandler{
		handleFunc: func(ctx context.Context, req *localtransport.McpProxyRequest) (*localtransport.McpProxyResponse, error) {
			return okResponse(`{"jsonrpc":"2.0","result":{"status":"ok"},"id":1}`), nil
		},
	}
	client := localtransport.NewLocalClientTransport(handler)

	var mu sync.Mutex
	dispatched := 0
	client.SetMessageHandler(func(ctx context.Context, msg *transport.BaseJsonRpcMessage) {
		mu.Lock()
		dispatched++
		mu.Unlock()
	})

	const n = 10
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(id int) {
			results <- client.Send(context.Background(), pingRequest(uint64(id)))
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, n, dispatched)
}
