package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp/internal/protocol"
	"github.com/effective-security/mcpbridge/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "mcp")

const (
	methodInitialize = "initialize"
	methodPing       = "ping"
	methodToolsList  = "tools/list"
	methodToolsCall  = "tools/call"

	notificationInitialized = "notifications/initialized"
)

// Client talks to one MCP server over the given transport. Create it with
// NewClient, then Initialize before any other call.
type Client struct {
	transport     transport.Transport
	protocol      *protocol.Protocol
	clientName    string
	clientVersion string

	mu           sync.RWMutex
	initialized  bool
	capabilities map[string]any
	serverInfo   *ServerInfo
}

// NewClient creates a client over the given transport.
func NewClient(tr transport.Transport) *Client {
	return &Client{
		transport:     tr,
		protocol:      protocol.NewProtocol(nil),
		clientName:    "mcpbridge",
		clientVersion: "1.0.0",
	}
}

// WithClientInfo sets the identity reported to the server during initialize.
func (c *Client) WithClientInfo(name, version string) *Client {
	c.clientName = name
	c.clientVersion = version
	return c
}

// Initialize starts the transport and performs the MCP handshake: the
// initialize request followed by the initialized notification. Server
// identity and capabilities are cached for the lifetime of the client.
func (c *Client) Initialize(ctx context.Context) (*InitializeResponse, error) {
	c.mu.RLock()
	initialized := c.initialized
	c.mu.RUnlock()
	if initialized {
		return nil, errors.New("client already initialized")
	}

	if err := c.protocol.Connect(c.transport); err != nil {
		return nil, errors.WithMessage(err, "failed to connect transport")
	}

	request := InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: ClientInfo{
			Name:    c.clientName,
			Version: c.clientVersion,
		},
	}
	response, err := doRequest(ctx, c, methodInitialize, request, new(InitializeResponse))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.initialized = true
	c.capabilities = response.Capabilities
	c.serverInfo = &response.ServerInfo
	c.mu.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", response.ServerInfo.Name,
		"version", response.ServerInfo.Version,
		"protocol", response.ProtocolVersion,
	)

	// The handshake completes when the client acknowledges.
	if err := c.protocol.Notification(notificationInitialized, map[string]any{}); err != nil {
		return nil, errors.WithMessage(err, "failed to send initialized notification")
	}
	return response, nil
}

// ListTools fetches one page of tool descriptors. A nil cursor requests the
// first page.
func (c *Client) ListTools(ctx context.Context, cursor *string) (*ToolsResponse, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	params := map[string]any{}
	if cursor != nil {
		params["cursor"] = *cursor
	}
	return doRequest(ctx, c, methodToolsList, params, new(ToolsResponse))
}

// ListAllTools follows pagination cursors until the server reports no more
// tools.
func (c *Client) ListAllTools(ctx context.Context) ([]ToolRetType, error) {
	var tools []ToolRetType
	var cursor *string
	for {
		page, err := c.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		tools = append(tools, page.Tools...)
		if page.NextCursor == nil || *page.NextCursor == "" {
			return tools, nil
		}
		cursor = page.NextCursor
	}
}

// CallTool executes the named tool on the server. A response with IsError set
// is a tool-level failure; a returned error is a transport or protocol one.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallToolResponse, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	params := map[string]any{
		"name": name,
	}
	if arguments != nil {
		params["arguments"] = arguments
	}
	return doRequest(ctx, c, methodToolsCall, params, new(CallToolResponse))
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}
	_, err := c.protocol.Request(ctx, methodPing, map[string]any{}, nil)
	return errors.WithMessage(err, "failed to ping server")
}

// Close shuts down the transport. The client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
	return c.protocol.Close()
}

// GetServerInfo returns the identity the server reported during initialize,
// or nil before the handshake.
func (c *Client) GetServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// GetCapabilities returns the capabilities the server reported during
// initialize.
func (c *Client) GetCapabilities() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

func (c *Client) checkInitialized() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return errors.New("client not initialized")
	}
	return nil
}

// doRequest sends a request and decodes the raw result into out.
func doRequest[T any](ctx context.Context, c *Client, method string, params any, out *T) (*T, error) {
	responseRaw, err := c.protocol.Request(ctx, method, params, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "request %q failed", method)
	}
	responseBytes, ok := responseRaw.(json.RawMessage)
	if !ok {
		return nil, errors.Newf("invalid response type: %T", responseRaw)
	}
	if err := json.Unmarshal(responseBytes, out); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal %q response", method)
	}
	return out, nil
}
