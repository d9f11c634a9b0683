// Package callbacks provides observers for bridge runs: query lifecycle,
// LLM calls and tool dispatches.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/xlog"
)

// Bridge identifies the query processor that emits events.
type Bridge interface {
	Name() string
}

// Tool identifies the tool being dispatched.
type Tool interface {
	Name() string
}

// ToolCallback receives tool dispatch events.
type ToolCallback interface {
	OnToolStart(ctx context.Context, tool Tool, bridgeName, input string)
	OnToolEnd(ctx context.Context, tool Tool, bridgeName, input string, output string)
	OnToolError(ctx context.Context, tool Tool, bridgeName, input string, err error)
}

// Callback receives query and LLM lifecycle events.
type Callback interface {
	ToolCallback

	OnQueryStart(ctx context.Context, bridge Bridge, input string)
	OnQueryEnd(ctx context.Context, bridge Bridge, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnQueryError(ctx context.Context, bridge Bridge, input string, err error, messages []llms.Message)
	OnLLMParseError(ctx context.Context, bridge Bridge, input string, response string, err error)
	OnLLMCallStart(ctx context.Context, bridge Bridge, llm llms.Model, payload []llms.Message)
	OnLLMCallEnd(ctx context.Context, bridge Bridge, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, bridge Bridge, tool string)
}

// ProgressReporter is implemented by callbacks that accept progress updates
// from long-running tool calls.
type ProgressReporter interface {
	OnProgress(ctx context.Context, bridge Bridge, title, message string)
}

// ensure that the callbacks implement the correct interfaces
var (
	_ Callback = (*Noop)(nil)
	_ Callback = (*Printer)(nil)
	_ Callback = (*PackageLogger)(nil)
	_ Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []Callback
}

func NewFanout(callbacks ...Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnQueryStart(ctx context.Context, bridge Bridge, input string) {
	for _, callback := range l.callbacks {
		callback.OnQueryStart(ctx, bridge, input)
	}
}

func (l *Fanout) OnQueryEnd(ctx context.Context, bridge Bridge, input string, resp *llms.ContentResponse, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnQueryEnd(ctx, bridge, input, resp, messages)
	}
}

func (l *Fanout) OnQueryError(ctx context.Context, bridge Bridge, input string, err error, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnQueryError(ctx, bridge, input, err, messages)
	}
}

func (l *Fanout) OnLLMParseError(ctx context.Context, bridge Bridge, input string, response string, err error) {
	for _, callback := range l.callbacks {
		callback.OnLLMParseError(ctx, bridge, input, response, err)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, bridge Bridge, llm llms.Model, payload []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, bridge, llm, payload)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, bridge Bridge, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, bridge, llm, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool Tool, bridgeName, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, bridgeName, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool Tool, bridgeName, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, bridgeName, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool Tool, bridgeName, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, bridgeName, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, bridge Bridge, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, bridge, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnQueryStart(ctx context.Context, bridge Bridge, input string) {}
func (l *Noop) OnQueryEnd(ctx context.Context, bridge Bridge, input string, resp *llms.ContentResponse, messages []llms.Message) {
}
func (l *Noop) OnQueryError(ctx context.Context, bridge Bridge, input string, err error, messages []llms.Message) {
}
func (l *Noop) OnLLMParseError(ctx context.Context, bridge Bridge, input string, response string, err error) {
}
func (l *Noop) OnLLMCallStart(ctx context.Context, bridge Bridge, llm llms.Model, payload []llms.Message) {
}
func (l *Noop) OnLLMCallEnd(ctx context.Context, bridge Bridge, llm llms.Model, resp *llms.ContentResponse) {
}
func (l *Noop) OnToolStart(ctx context.Context, tool Tool, bridgeName, input string) {}
func (l *Noop) OnToolEnd(ctx context.Context, tool Tool, bridgeName, input string, output string) {
}
func (l *Noop) OnToolError(ctx context.Context, tool Tool, bridgeName, input string, err error) {
}
func (l *Noop) OnToolNotFound(ctx context.Context, bridge Bridge, tool string) {
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnQueryStart(ctx context.Context, bridge Bridge, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Query Start: %s\n", bridge.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnQueryEnd(ctx context.Context, bridge Bridge, input string, resp *llms.ContentResponse, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Query End: %s\n", bridge.Name())
	if l.Mode == ModeVerbose {
		for _, choice := range resp.Choices {
			if choice.Content != "" {
				fmt.Fprintln(l.Out, choice.Content)
			}
		}
	}
}

func (l *Printer) OnQueryError(ctx context.Context, bridge Bridge, input string, err error, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Query Error: %s: %s\n", bridge.Name(), err.Error())
}

func (l *Printer) OnLLMParseError(ctx context.Context, bridge Bridge, input string, response string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Parse Error: %s: %s\n", bridge.Name(), err.Error())
	fmt.Fprintf(l.Out, "Response: %s\n", response)
}

func (l *Printer) OnLLMCallStart(ctx context.Context, bridge Bridge, llm llms.Model, payload []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s: %s model, %d messages\n", bridge.Name(), llm.GetName(), len(payload))
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, bridge Bridge, llm llms.Model, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call End: %s: %s model, %d choices\n", bridge.Name(), llm.GetName(), len(resp.Choices))
}

func (l *Printer) OnToolStart(ctx context.Context, tool Tool, bridgeName, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s (%s)\n", tool.Name(), bridgeName)
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool Tool, bridgeName, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s (%s)\n", tool.Name(), bridgeName)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool Tool, bridgeName, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s (%s): %s\n", tool.Name(), bridgeName, err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, bridge Bridge, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnQueryStart(ctx context.Context, bridge Bridge, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "query_start",
		"bridge", bridge.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnQueryEnd(ctx context.Context, bridge Bridge, input string, resp *llms.ContentResponse, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "query_end",
		"bridge", bridge.Name())
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			l.logger.ContextKV(ctx, xlog.DEBUG, "result", choice.Content)
		}
	}
}

func (l *PackageLogger) OnQueryError(ctx context.Context, bridge Bridge, input string, err error, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "query_error",
		"bridge", bridge.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnLLMParseError(ctx context.Context, bridge Bridge, input string, response string, err error) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_parse_error",
		"bridge", bridge.Name(),
		"err", err.Error(),
		"response", response,
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, bridge Bridge, llm llms.Model, payload []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"bridge", bridge.Name(),
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, bridge Bridge, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"bridge", bridge.Name(),
		"model", llm.GetName(),
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool Tool, bridgeName, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"bridge", bridgeName,
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool Tool, bridgeName, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"bridge", bridgeName,
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool Tool, bridgeName, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"bridge", bridgeName,
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, bridge Bridge, tool string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"bridge", bridge.Name(),
		"tool", tool,
	)
}
