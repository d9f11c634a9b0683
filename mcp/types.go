// Package mcp implements a Model Context Protocol client: JSON-RPC 2.0 over a
// pluggable transport, with typed wrappers for the initialize handshake, tool
// discovery and tool calls.
package mcp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ProtocolVersion is the MCP revision this client speaks.
const ProtocolVersion = "2024-11-05"

// Standard JSON-RPC 2.0 error codes returned by MCP servers.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// ClientInfo identifies the client in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeRequest is the params of the initialize request.
type InitializeRequest struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// InitializeResponse is the result of the initialize request.
type InitializeResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ToolRetType is a tool descriptor returned by tools/list.
type ToolRetType struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	InputSchema any     `json:"inputSchema"`
}

// ToolsResponse is the result of tools/list. NextCursor, when set, is an
// opaque token for fetching the next page.
type ToolsResponse struct {
	Tools      []ToolRetType `json:"tools"`
	NextCursor *string       `json:"nextCursor,omitempty"`
}

// CallToolRequest is the params of tools/call.
type CallToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResponse is the result of tools/call. A set IsError means the tool
// ran and failed; the failure detail is in Content.
type CallToolResponse struct {
	Content []*Content `json:"content"`
	IsError *bool      `json:"isError,omitempty"`
}

// ContentType discriminates content blocks. The values are the wire tags.
type ContentType string

const (
	ContentTypeText             ContentType = "text"
	ContentTypeImage            ContentType = "image"
	ContentTypeEmbeddedResource ContentType = "resource"
)

// TextContent is plain text produced by a tool.
type TextContent struct {
	Text string `json:"text"`
}

// ImageContent is base64-encoded image data produced by a tool.
type ImageContent struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// EmbeddedResource is a server-side resource inlined into a tool result.
type EmbeddedResource struct {
	Uri      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Content is the tagged union of tool result blocks. Exactly one of the
// variant pointers is set, named by Type.
type Content struct {
	Type             ContentType
	TextContent      *TextContent
	ImageContent     *ImageContent
	EmbeddedResource *EmbeddedResource
}

// NewTextContent creates a text content block.
func NewTextContent(text string) *Content {
	return &Content{
		Type:        ContentTypeText,
		TextContent: &TextContent{Text: text},
	}
}

// MarshalJSON emits the MCP wire form: the variant fields inlined next to the
// type tag, except resources which nest under a resource member.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentTypeText:
		if c.TextContent == nil {
			return nil, errors.New("text content is not set")
		}
		return json.Marshal(struct {
			Type ContentType `json:"type"`
			Text string      `json:"text"`
		}{Type: c.Type, Text: c.TextContent.Text})
	case ContentTypeImage:
		if c.ImageContent == nil {
			return nil, errors.New("image content is not set")
		}
		return json.Marshal(struct {
			Type     ContentType `json:"type"`
			Data     string      `json:"data"`
			MimeType string      `json:"mimeType"`
		}{Type: c.Type, Data: c.ImageContent.Data, MimeType: c.ImageContent.MimeType})
	case ContentTypeEmbeddedResource:
		if c.EmbeddedResource == nil {
			return nil, errors.New("embedded resource is not set")
		}
		return json.Marshal(struct {
			Type     ContentType       `json:"type"`
			Resource *EmbeddedResource `json:"resource"`
		}{Type: c.Type, Resource: c.EmbeddedResource})
	}
	return nil, errors.Newf("unknown content type: %q", c.Type)
}

// UnmarshalJSON parses a content block by its type tag.
func (c *Content) UnmarshalJSON(data []byte) error {
	probe := struct {
		Type ContentType `json:"type"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.WithStack(err)
	}

	switch probe.Type {
	case ContentTypeText:
		var text TextContent
		if err := json.Unmarshal(data, &text); err != nil {
			return errors.WithStack(err)
		}
		c.Type = probe.Type
		c.TextContent = &text
	case ContentTypeImage:
		var image ImageContent
		if err := json.Unmarshal(data, &image); err != nil {
			return errors.WithStack(err)
		}
		c.Type = probe.Type
		c.ImageContent = &image
	case ContentTypeEmbeddedResource:
		wrapper := struct {
			Resource *EmbeddedResource `json:"resource"`
		}{}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return errors.WithStack(err)
		}
		if wrapper.Resource == nil {
			return errors.New("embedded resource is not set")
		}
		c.Type = probe.Type
		c.EmbeddedResource = wrapper.Resource
	default:
		return errors.Newf("unknown content type: %q", probe.Type)
	}
	return nil
}
