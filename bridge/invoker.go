package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/callbacks"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/pkg/metricskey"
)

// emptyToolContent is returned to the model when a tool succeeds without
// producing any content blocks.
const emptyToolContent = "Tool executed successfully but returned no content"

// ToolCallRequest is one tool invocation requested by the model.
type ToolCallRequest struct {
	// CallID ties the result back to the model's tool call.
	CallID string
	// Name is the tool to execute.
	Name string
	// Arguments is the raw JSON argument object produced by the model.
	Arguments string
}

// ToolCallResult is the outcome of one tool invocation. Failures are results
// handed back to the model, never Go errors: the model decides how to react.
type ToolCallResult struct {
	CallID  string
	Name    string
	Content string
	Success bool
}

// toolRef adapts a plain tool name to the callbacks.Tool interface.
type toolRef string

func (t toolRef) Name() string { return string(t) }

// Invoker executes tool calls against an MCP server. Call IDs are unique
// only within one LLM response, so each ID is dispatched at most once per
// round: a repeat in the same round yields a failed result instead of a
// second execution, and beginRound clears the claims between rounds. The
// invoker never retries.
type Invoker struct {
	client   mcp.ToolCaller
	registry *Registry
	bridge   callbacks.Bridge
	callback callbacks.Callback

	mu   sync.Mutex
	seen map[string]bool
}

// NewInvoker creates an invoker dispatching to the given caller, resolving
// names through the registry.
func NewInvoker(client mcp.ToolCaller, registry *Registry, bridge callbacks.Bridge, callback callbacks.Callback) *Invoker {
	if callback == nil {
		callback = callbacks.NewNoop()
	}
	return &Invoker{
		client:   client,
		registry: registry,
		bridge:   bridge,
		callback: callback,
		seen:     map[string]bool{},
	}
}

// Invoke executes one tool call. Unknown names, invalid arguments, duplicate
// call IDs, remote failures and tool-level errors all come back as failed
// results with a message the model can act on.
func (v *Invoker) Invoke(ctx context.Context, req ToolCallRequest) ToolCallResult {
	tool := toolRef(req.Name)
	bridgeName := v.bridge.Name()

	decl, ok := v.registry.Declaration(req.Name)
	if !ok {
		v.callback.OnToolNotFound(ctx, v.bridge, req.Name)
		metricskey.StatsToolCallsNotFound.IncrCounter(1, req.Name)
		content := fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s",
			req.Name, strings.Join(v.registry.Names(), ", "))
		return ToolCallResult{CallID: req.CallID, Name: req.Name, Content: content}
	}

	if req.CallID != "" && !v.claim(req.CallID) {
		return v.failed(ctx, tool, bridgeName, req, errors.Newf("duplicate tool call id: %q", req.CallID))
	}

	args, err := parseArguments(req.Arguments)
	if err != nil {
		return v.failed(ctx, tool, bridgeName, req, err)
	}
	if decl.Function != nil && decl.Function.Parameters != nil {
		for _, key := range decl.Function.Parameters.Required {
			if _, ok := args[key]; !ok {
				return v.failed(ctx, tool, bridgeName, req, errors.Newf("missing required argument: %q", key))
			}
		}
	}

	v.callback.OnToolStart(ctx, tool, bridgeName, req.Arguments)
	started := time.Now()
	resp, err := v.client.CallTool(ctx, req.Name, args)
	metricskey.PerfToolCall.MeasureSince(started, req.Name)
	if err != nil {
		return v.failed(ctx, tool, bridgeName, req, err)
	}

	content, err := flattenContent(resp.Content)
	if err != nil {
		return v.failed(ctx, tool, bridgeName, req, err)
	}
	if resp.IsError != nil && *resp.IsError {
		v.callback.OnToolError(ctx, tool, bridgeName, req.Arguments, errors.New(content))
		metricskey.StatsToolCallsFailed.IncrCounter(1, req.Name)
		return ToolCallResult{CallID: req.CallID, Name: req.Name, Content: content}
	}

	v.callback.OnToolEnd(ctx, tool, bridgeName, req.Arguments, content)
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, req.Name)
	return ToolCallResult{
		CallID:  req.CallID,
		Name:    req.Name,
		Content: content,
		Success: true,
	}
}

// beginRound discards the claims of the previous round. The bridge calls it
// before dispatching the calls of one LLM response.
func (v *Invoker) beginRound() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen = map[string]bool{}
}

// claim marks the call ID as dispatched in the current round. It returns
// false if the ID was already claimed.
func (v *Invoker) claim(callID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[callID] {
		return false
	}
	v.seen[callID] = true
	return true
}

func (v *Invoker) failed(ctx context.Context, tool toolRef, bridgeName string, req ToolCallRequest, err error) ToolCallResult {
	v.callback.OnToolError(ctx, tool, bridgeName, req.Arguments, err)
	metricskey.StatsToolCallsFailed.IncrCounter(1, req.Name)
	return ToolCallResult{
		CallID:  req.CallID,
		Name:    req.Name,
		Content: fmt.Sprintf("Error executing tool %s: %v", req.Name, err),
	}
}

// parseArguments decodes the model-produced argument string into the object
// tools/call expects. Empty input is a valid empty object.
func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, errors.WithMessage(err, "arguments must be a JSON object")
	}
	return args, nil
}

// flattenContent renders tool result blocks as a single string: text blocks
// joined by newlines, other blocks in their wire form.
func flattenContent(blocks []*mcp.Content) (string, error) {
	var parts []string
	for _, block := range blocks {
		if block == nil {
			continue
		}
		if block.Type == mcp.ContentTypeText && block.TextContent != nil {
			parts = append(parts, block.TextContent.Text)
			continue
		}
		b, err := json.Marshal(block)
		if err != nil {
			return "", errors.WithMessage(err, "failed to encode tool content")
		}
		parts = append(parts, string(b))
	}
	if len(parts) == 0 {
		return emptyToolContent, nil
	}
	return strings.Join(parts, "\n"), nil
}
