// Package bridge connects an LLM to the tools of one MCP server: it
// translates the server's tool descriptors into function declarations, runs
// the query loop that lets the model call those tools, and keeps the
// conversation history of the session.
package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/chatmodel"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/mcp/transport"
	"github.com/effective-security/mcpbridge/mcp/transport/stdio"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llmutils"
	"github.com/effective-security/mcpbridge/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

//go:generate mockgen -destination=../mocks/mockllms/llm_mock.gen.go -package mockllms github.com/effective-security/mcpbridge/pkg/llms Model

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "bridge")

// ErrToolRoundsExceeded is returned when a query needs more tool rounds than
// MaxToolRounds allows. The conversation up to that point is preserved.
var ErrToolRoundsExceeded = errors.New("the tool calls limit is exceeded")

// ErrNotConnected is returned for queries before Connect or after Close.
var ErrNotConnected = errors.New("bridge is not connected")

// ServerIdentity names the MCP server to attach to: either an explicit
// transport, or a server program to spawn over stdio.
type ServerIdentity struct {
	// Name labels the server in logs, metrics and callbacks. When empty the
	// name reported by the server during the handshake is used.
	Name string
	// ServerScript is the path of a server program to run over stdio.
	ServerScript string
	// Transport attaches to an already reachable server. Takes precedence
	// over ServerScript.
	Transport transport.Transport
	// ClientName and ClientVersion are reported in the MCP handshake.
	ClientName    string
	ClientVersion string
}

// Bridge is a conversational connector between one LLM and one MCP server.
// Queries are serialized: one ProcessQuery runs at a time per bridge.
type Bridge struct {
	llm llms.Model
	cfg *Config

	mu        sync.Mutex
	name      string
	client    mcp.ToolClient
	registry  *Registry
	invoker   *Invoker
	conv      *Conversation
	sessionID string
	chatID    string
	callSeq   int
}

// New creates a bridge over the given model. Connect must succeed before the
// first query.
func New(llm llms.Model, opts ...Option) *Bridge {
	return &Bridge{
		llm:  llm,
		cfg:  NewConfig(opts...),
		name: "mcpbridge",
	}
}

// Name returns the bridge name used in logs, metrics and callbacks.
func (b *Bridge) Name() string {
	return b.name
}

// SessionID returns the identifier minted by Connect, or an empty string
// before it.
func (b *Bridge) SessionID() string {
	return b.sessionID
}

// Registry returns the tool registry of the connected session.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// Conversation returns the session history.
func (b *Bridge) Conversation() *Conversation {
	return b.conv
}

// Connect establishes the MCP session and loads the tool registry. A
// descriptor that cannot be translated fails Connect: no query runs against
// a partially declared tool set.
func (b *Bridge) Connect(ctx context.Context, server ServerIdentity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return errors.New("bridge already connected")
	}

	tr := server.Transport
	if tr == nil {
		if server.ServerScript == "" {
			return errors.New("either transport or server script is required")
		}
		command, args, err := stdio.CommandForScript(server.ServerScript)
		if err != nil {
			return err
		}
		tr = stdio.New(command, args...)
	}

	client := mcp.NewClient(tr)
	if server.ClientName != "" {
		client = client.WithClientInfo(server.ClientName, values.StringsCoalesce(server.ClientVersion, "1.0.0"))
	}
	info, err := client.Initialize(ctx)
	if err != nil {
		// the transport is already started by the handshake attempt
		_ = client.Close()
		return errors.WithMessage(err, "failed to initialize MCP session")
	}

	registry := NewRegistry(client)
	if err := registry.Refresh(ctx); err != nil {
		_ = client.Close()
		return errors.WithMessage(err, "failed to load tools")
	}

	b.name = values.StringsCoalesce(server.Name, info.ServerInfo.Name, b.name)
	b.client = client
	b.registry = registry
	b.invoker = NewInvoker(client, registry, b, b.cfg.CallbackHandler)
	b.conv = NewConversation(b.cfg.Store)
	b.sessionID = uuid.New().String()
	b.chatID = values.StringsCoalesce(b.cfg.ChatID, chatmodel.NewChatID())
	b.callSeq = 0

	logger.ContextKV(ctx, xlog.DEBUG,
		"bridge", b.name,
		"session_id", b.sessionID,
		"server", info.ServerInfo.Name,
		"server_version", info.ServerInfo.Version,
		"tools", registry.Len(),
	)
	return nil
}

// Close releases the MCP session and transport. The bridge can be connected
// again afterwards; the conversation does not survive.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	b.registry = nil
	b.invoker = nil
	b.conv = nil
	b.sessionID = ""
	return err
}

// ProcessQuery runs one user query to completion: the model answers either
// directly or after a bounded number of tool rounds. Tool failures are fed
// back to the model; LLM failures fail the query.
func (b *Bridge) ProcessQuery(ctx context.Context, query string) (string, error) {
	return b.processQuery(ctx, b.cfg, query)
}

func (b *Bridge) processQuery(ctx context.Context, cfg *Config, query string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return "", errors.WithStack(ErrNotConnected)
	}

	started := time.Now()
	defer metricskey.PerfQueryProcess.MeasureSince(started, b.name)

	ctx = b.ensureChatContext(ctx)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnQueryStart(ctx, b, query)
	}

	// Pin the declaration set for the whole query.
	b.registry.acquire()
	defer b.registry.release()

	answer, resp, messages, err := b.run(ctx, cfg, query)
	if err != nil {
		metricskey.StatsQueriesFailed.IncrCounter(1, b.name)
		if callback != nil {
			callback.OnQueryError(ctx, b, query, err, messages)
		}
		return "", err
	}
	metricskey.StatsQueriesSucceeded.IncrCounter(1, b.name)
	if callback != nil {
		callback.OnQueryEnd(ctx, b, query, resp, messages)
	}
	return answer, nil
}

// run executes the query loop and returns the final answer together with the
// last LLM response and the payload messages.
func (b *Bridge) run(ctx context.Context, cfg *Config, query string) (string, *llms.ContentResponse, []llms.Message, error) {
	systemPrompt, err := b.getSystemPrompt(cfg)
	if err != nil {
		return "", nil, nil, errors.WithMessage(err, "failed to format system prompt")
	}

	var payload []llms.Message
	if systemPrompt != "" {
		payload = append(payload, llms.MessageFromTextParts(llms.RoleSystem, systemPrompt))
	}
	if !cfg.SkipHistory {
		payload = append(payload, b.conv.Snapshot()...)
	}
	userMessage := llms.MessageFromTextParts(llms.RoleHuman, query)
	b.conv.Append(ctx, userMessage)
	payload = append(payload, userMessage)

	callOpts := cfg.GetCallOptions()
	declarations := b.registry.Declarations()
	if len(declarations) > 0 {
		if !b.llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return "", nil, payload, errors.Newf("bridge %s: the LLM does not support function calling", b.name)
		}
		callOpts = append(callOpts, llms.WithTools(declarations))
	}

	callback := cfg.CallbackHandler
	modelName := b.llm.GetName()
	bytesLimit := uint64(values.NumbersCoalesce(cfg.MaxContentSize, DefaultMaxContentSize))
	messagesLimit := values.NumbersCoalesce(cfg.MaxMessages, DefaultMaxMessages)
	roundsLimit := values.NumbersCoalesce(cfg.MaxToolRounds, DefaultMaxToolRounds)

	var resp *llms.ContentResponse
	retryCount := 0
	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", nil, payload, errors.WithStack(err)
		}
		if len(payload) >= messagesLimit {
			return "", nil, payload, errors.Newf("bridge %s: the messages count exceeded limit", b.name)
		}
		bytesSent := llmutils.CountMessagesContentSize(payload)
		if bytesSent > bytesLimit {
			return "", nil, payload, errors.Newf("bridge %s: the content size exceeded limit", b.name)
		}

		if callback != nil {
			callback.OnLLMCallStart(ctx, b, b.llm, payload)
		}

		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(payload)), b.name, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), b.name, modelName)

		llmStarted := time.Now()
		resp, err = b.llm.GenerateContent(ctx, payload, callOpts...)
		metricskey.PerfLLMCall.MeasureSince(llmStarted, b.name, modelName)
		if err != nil {
			return "", nil, payload, errors.Wrapf(err, "bridge %s: failed to generate content from %s", b.name, b.llm.GetProviderType())
		}

		if callback != nil {
			callback.OnLLMCallEnd(ctx, b, b.llm, resp)
		}

		bytesReceived := llmutils.CountResponseContentSize(resp)
		metricskey.StatsLLMBytesReceived.IncrCounter(float64(bytesReceived), b.name, modelName)
		metricskey.StatsLLMBytesTotal.IncrCounter(float64(bytesSent+bytesReceived), b.name, modelName)

		tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), b.name, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), b.name, modelName)
		metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), b.name, modelName)

		if len(resp.Choices) == 0 {
			retryCount++
			if retryCount >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"bridge", b.name,
					"status", "max_retries_exceeded",
					"input", slices.StringUpto(query, 64),
					"retry_count", retryCount,
				)
				return "", nil, payload, errors.Newf("bridge %s: LLM returned empty response after %d retries", b.name, retryCount)
			}
			metricskey.StatsQueriesRetried.IncrCounter(1, b.name)
			logger.ContextKV(ctx, xlog.WARNING,
				"bridge", b.name,
				"status", "retrying_empty_response",
				"retry_count", retryCount,
			)
			continue
		}

		if !hasToolCalls(resp) {
			break
		}
		if rounds >= roundsLimit {
			return "", nil, payload, errors.WithMessagef(ErrToolRoundsExceeded, "bridge %s", b.name)
		}
		rounds++

		payload, err = b.executeToolCalls(ctx, payload, resp)
		if err != nil {
			return "", nil, payload, err
		}
	}

	answer := finalText(resp)
	b.conv.Append(ctx, llms.MessageFromTextParts(llms.RoleAI, answer))

	logger.ContextKV(ctx, xlog.DEBUG,
		"bridge", b.name,
		"status", "query_done",
		"rounds", rounds,
		"human", slices.StringUpto(query, 64),
		"ai", slices.StringUpto(answer, 64),
	)
	return answer, resp, payload, nil
}

// executeToolCalls runs one tool round: it appends the assistant turn per
// choice, dispatches every call concurrently and appends one tool result per
// call in request order. After cancellation the collected results are
// discarded and the assistant turns never reach the conversation, so the
// history does not end on tool calls without matching results.
func (b *Bridge) executeToolCalls(ctx context.Context, payload []llms.Message, resp *llms.ContentResponse) ([]llms.Message, error) {
	type dispatched struct {
		result ToolCallResult
		index  int
	}

	var toolCalls []llms.ToolCall
	var assistantMessages []llms.Message
	for _, choice := range resp.Choices {
		var choiceToolCalls []llms.ToolCall
		for _, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				continue
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, b.callSeq)
			}
			b.callSeq++
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			choiceToolCalls = append(choiceToolCalls, toolCall)

			logger.ContextKV(ctx, xlog.DEBUG,
				"bridge", b.name,
				"status", "tool_call_found",
				"tool_call_id", toolCall.ID,
				"tool_call_name", toolCall.FunctionCall.Name,
			)
		}
		if len(choiceToolCalls) == 0 {
			continue
		}
		toolCalls = append(toolCalls, choiceToolCalls...)
		assistantMessage := llms.MessageFromToolCalls(llms.RoleAI, choiceToolCalls...)
		payload = append(payload, assistantMessage)
		assistantMessages = append(assistantMessages, assistantMessage)
	}
	if len(toolCalls) == 0 {
		return payload, nil
	}

	// call IDs are only unique within one LLM response
	b.invoker.beginRound()

	resultChan := make(chan dispatched, len(toolCalls))
	var wg sync.WaitGroup
	wg.Add(len(toolCalls))
	for i, toolCall := range toolCalls {
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			result := b.invoker.Invoke(ctx, ToolCallRequest{
				CallID:    tc.ID,
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			})
			resultChan <- dispatched{result: result, index: index}
		}(i, toolCall)
	}
	wg.Wait()
	close(resultChan)

	if err := ctx.Err(); err != nil {
		return payload, errors.WithStack(err)
	}

	for _, assistantMessage := range assistantMessages {
		b.conv.Append(ctx, assistantMessage)
	}

	results := make([]ToolCallResult, len(toolCalls))
	for d := range resultChan {
		if d.index >= 0 && d.index < len(results) {
			results[d.index] = d.result
		}
	}

	for i, result := range results {
		if result.CallID == "" {
			tc := toolCalls[i]
			results[i] = ToolCallResult{
				CallID:  tc.ID,
				Name:    tc.FunctionCall.Name,
				Content: "Tool call failed: no response received",
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"bridge", b.name,
				"status", "tool_call_missing_response",
				"tool_call_id", tc.ID,
				"tool_name", tc.FunctionCall.Name,
			)
		}
	}

	for _, result := range results {
		if !result.Success {
			logger.ContextKV(ctx, xlog.WARNING,
				"bridge", b.name,
				"status", "tool_call_failed",
				"tool", result.Name,
				"content", slices.StringUpto(result.Content, 64),
			)
		}
		toolMessage := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: result.CallID,
			Name:       result.Name,
			Content:    result.Content,
		})
		payload = append(payload, toolMessage)
		b.conv.Append(ctx, toolMessage)
	}
	return payload, nil
}

// RunInteractiveSession reads queries line by line until EOF or "quit". A
// failed query is reported and the session continues.
func (b *Bridge) RunInteractiveSession(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "MCP bridge started. Type your queries or 'quit' to exit.")

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		fmt.Fprint(out, "Query: ")
		if !scanner.Scan() {
			return errors.WithStack(scanner.Err())
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "quit") {
			return nil
		}

		answer, err := b.ProcessQuery(ctx, query)
		if err != nil {
			fmt.Fprintf(out, "Error: %s\n", err.Error())
			continue
		}
		fmt.Fprintf(out, "%s\n", answer)
	}
}

func (b *Bridge) getSystemPrompt(cfg *Config) (string, error) {
	var systemPrompt string
	if cfg.PromptTemplate != nil {
		promptValue, err := cfg.PromptTemplate.FormatPrompt(cfg.PromptInput)
		if err != nil {
			return "", err
		}
		systemPrompt = promptValue.String()
	} else {
		systemPrompt = cfg.SystemPrompt
	}
	systemPrompt = strings.TrimRight(systemPrompt, "\n")

	if cfg.ResponseFormat == nil && cfg.formatInstructions != "" {
		// if the provider does not enforce a response format, the output
		// schema goes into the system prompt
		instructions := strings.TrimRight(cfg.formatInstructions, "\n")
		if systemPrompt != "" {
			systemPrompt = fmt.Sprintf("%s\n\n# OUTPUT SCHEMA\n%s", systemPrompt, instructions)
		} else {
			systemPrompt = fmt.Sprintf("# OUTPUT SCHEMA\n%s", instructions)
		}
	}
	return systemPrompt, nil
}

// ensureChatContext attaches the session chat context unless the caller
// already supplied one.
func (b *Bridge) ensureChatContext(ctx context.Context) context.Context {
	if _, _, err := chatmodel.GetTenantAndChatID(ctx); err == nil {
		return ctx
	}
	return chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("", b.chatID, nil))
}

func hasToolCalls(resp *llms.ContentResponse) bool {
	for _, choice := range resp.Choices {
		for _, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall != nil {
				return true
			}
		}
	}
	return false
}

// finalText renders the model's answer: the single choice's content, or all
// choice contents joined for multi-choice responses.
func finalText(resp *llms.ContentResponse) string {
	if len(resp.Choices) == 1 {
		return resp.Choices[0].Content
	}
	var combined strings.Builder
	for i, choice := range resp.Choices {
		if i > 0 {
			combined.WriteString("\n\n")
		}
		combined.WriteString(choice.Content)
	}
	return combined.String()
}
