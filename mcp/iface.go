package mcp

import "context"

//go:generate mockgen -source=iface.go -destination=../mocks/mockmcp/mcp_mock.gen.go -package mockmcp

// ToolLister enumerates the tools an MCP server exposes.
type ToolLister interface {
	ListAllTools(ctx context.Context) ([]ToolRetType, error)
}

// ToolCaller executes tools on an MCP server.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (*CallToolResponse, error)
}

// ToolClient is the client surface needed to serve tools to an LLM.
type ToolClient interface {
	ToolLister
	ToolCaller
	Close() error
}

var _ ToolClient = (*Client)(nil)
