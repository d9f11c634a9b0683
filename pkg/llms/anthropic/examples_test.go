package anthropic_test

import (
	"context"
	"fmt"
	"log"
	"reflect"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/anthropic"
	"github.com/effective-security/mcpbridge/pkg/schema"
)

// Example_generate shows basic text generation.
func Example_generate() {
	llm, err := anthropic.New(
		anthropic.WithToken("your-api-key"), // or set ANTHROPIC_API_KEY
		anthropic.WithModel("claude-sonnet-4-5"),
	)
	if err != nil {
		log.Fatal(err)
	}

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a concise weather reporter."),
		llms.MessageFromTextParts(llms.RoleHuman, "What should I pack for a trip to Seattle in November?"),
	}

	resp, err := llm.GenerateContent(context.Background(), messages,
		llms.WithMaxTokens(300),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Choices[0].Content)
}

// Example_streaming prints chunks as they arrive.
func Example_streaming() {
	llm, err := anthropic.New(
		anthropic.WithModel("claude-sonnet-4-5"),
	)
	if err != nil {
		log.Fatal(err)
	}

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "Describe a typical summer day in Austin, TX."),
	}

	resp, err := llm.GenerateContent(context.Background(), messages,
		llms.WithMaxTokens(200),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			fmt.Print(string(chunk))
			return nil
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n\nFinal: %s\n", resp.Choices[0].Content)
}

// Example_toolCalling runs one tool round trip: the model requests a
// tool call, the caller executes it and feeds the result back.
func Example_toolCalling() {
	llm, err := anthropic.New(
		anthropic.WithModel("claude-sonnet-4-5"),
	)
	if err != nil {
		log.Fatal(err)
	}

	type forecastArgs struct {
		Location string `json:"location" description:"City and state, e.g. Austin, TX"`
		Unit     string `json:"unit" description:"Temperature unit" enum:"celsius,fahrenheit"`
	}
	sc, err := schema.New(reflect.TypeOf(forecastArgs{}))
	if err != nil {
		log.Fatal(err)
	}

	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "get_forecast",
				Description: "Get the weather forecast for a location",
				Parameters:  sc.Parameters,
			},
		},
	}

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "What's the forecast for Austin, TX?"),
	}

	resp, err := llm.GenerateContent(context.Background(), messages,
		llms.WithTools(tools),
	)
	if err != nil {
		log.Fatal(err)
	}

	if len(resp.Choices[0].ToolCalls) == 0 {
		fmt.Println(resp.Choices[0].Content)
		return
	}

	call := resp.Choices[0].ToolCalls[0]
	fmt.Printf("tool: %s args: %s\n", call.FunctionCall.Name, call.FunctionCall.Arguments)

	// The tool result would come from the MCP server.
	messages = append(messages,
		llms.MessageFromToolCalls(llms.RoleAI, call),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       call.FunctionCall.Name,
			Content:    "Sunny, high of 95F, low of 74F",
		}),
	)

	final, err := llm.GenerateContent(context.Background(), messages)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(final.Choices[0].Content)
}

// Example_callOptions shows sampling options and usage metadata.
func Example_callOptions() {
	llm, err := anthropic.New(
		anthropic.WithModel("claude-sonnet-4-5"),
		anthropic.WithBaseURL("https://api.anthropic.com"),
	)
	if err != nil {
		log.Fatal(err)
	}

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "Summarize this week's Gulf Coast weather in two sentences."),
	}

	resp, err := llm.GenerateContent(context.Background(), messages,
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(150),
		llms.WithTopP(0.9),
		llms.WithStopWords([]string{"END"}),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Choices[0].Content)

	info := resp.Choices[0].GenerationInfo
	fmt.Printf("input tokens: %v, output tokens: %v\n", info["InputTokens"], info["OutputTokens"])
}
