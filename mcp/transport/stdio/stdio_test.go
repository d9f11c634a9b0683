package stdio_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/effective-security/mcpbridge/mcp/transport"
	"github.com/effective-security/mcpbridge/mcp/transport/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandForScript(t *testing.T) {
	command, args, err := stdio.CommandForScript("server.py")
	require.NoError(t, err)
	assert.Equal(t, "python3", command)
	assert.Equal(t, []string{"server.py"}, args)

	command, args, err = stdio.CommandForScript("dist/server.js")
	require.NoError(t, err)
	assert.Equal(t, "node", command)
	assert.Equal(t, []string{"dist/server.js"}, args)

	dir := t.TempDir()
	bin := filepath.Join(dir, "server")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	command, args, err = stdio.CommandForScript(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, command)
	assert.Empty(t, args)

	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("not a server"), 0o644))
	_, _, err = stdio.CommandForScript(plain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server must be a .py or .js script, or an executable")

	_, _, err = stdio.CommandForScript(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to stat server")
}

// cat echoes every line back, which is enough to exercise framing in both
// directions.
func TestTransport_EchoedMessages(t *testing.T) {
	tr := stdio.New("cat")

	received := make(chan *transport.BaseJsonRpcMessage, 1)
	tr.SetMessageHandler(func(ctx context.Context, message *transport.BaseJsonRpcMessage) {
		received <- message
	})
	closed := make(chan struct{})
	tr.SetCloseHandler(func() {
		close(closed)
	})

	require.NoError(t, tr.Start(context.Background()))

	err := tr.Send(context.Background(), transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  "ping",
		Params:  json.RawMessage(`{}`),
		Id:      42,
	}))
	require.NoError(t, err)

	select {
	case msg := <-received:
		require.Equal(t, transport.BaseMessageTypeJSONRPCRequestType, msg.Type)
		assert.Equal(t, transport.RequestId(42), msg.JsonRpcRequest.Id)
		assert.Equal(t, "ping", msg.JsonRpcRequest.Method)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	require.NoError(t, tr.Close())

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close handler")
	}
}

func TestTransport_SurfacesStderr(t *testing.T) {
	tr := stdio.New("sh", "-c", "echo oops >&2; cat")

	errs := make(chan error, 4)
	tr.SetErrorHandler(func(err error) {
		errs <- err
	})

	require.NoError(t, tr.Start(context.Background()))
	defer func() {
		_ = tr.Close()
	}()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "server stderr: oops")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stderr line")
	}
}

func TestTransport_ReportsUnparsableOutput(t *testing.T) {
	tr := stdio.New("sh", "-c", "echo not-json; cat")

	errs := make(chan error, 4)
	tr.SetErrorHandler(func(err error) {
		errs <- err
	})

	require.NoError(t, tr.Start(context.Background()))
	defer func() {
		_ = tr.Close()
	}()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "failed to deserialize message")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for parse error")
	}
}

func TestTransport_Lifecycle(t *testing.T) {
	tr := stdio.New("cat")

	err := tr.Send(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: "2.0",
		Method:  "notifications/initialized",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport not started")

	closed := false
	tr.SetCloseHandler(func() {
		closed = true
	})
	require.NoError(t, tr.Close())
	assert.True(t, closed, "close handler should fire even when never started")

	tr2 := stdio.New("cat")
	require.NoError(t, tr2.Start(context.Background()))
	err = tr2.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport already started")

	require.NoError(t, tr2.Close())

	err = tr2.Send(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: "2.0",
		Method:  "notifications/initialized",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport not started")
}

func TestTransport_StartFailure(t *testing.T) {
	tr := stdio.New("/nonexistent/mcp-server-binary")
	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start server")
}
