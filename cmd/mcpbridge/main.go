// Command mcpbridge runs an interactive chat session against an MCP server,
// letting the configured LLM call the server's tools.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/mcpbridge/bridge"
	"github.com/effective-security/mcpbridge/callbacks"
	"github.com/effective-security/mcpbridge/pkg/llmfactory"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/xlog"
)

var (
	cfgFile = flag.String("cfg", "llm.yaml", "LLM provider configuration file")
	model   = flag.String("model", "", "preferred model name, uses the provider default when empty")
	server  = flag.String("server", "", "path of the MCP server program to run over stdio")
	rounds  = flag.Int("rounds", bridge.DefaultMaxToolRounds, "maximum tool rounds per query")
	chatID  = flag.String("chat-id", "", "chat ID to resume, a new chat when empty")
	verbose = flag.Bool("v", false, "print tool and LLM activity")
)

func main() {
	flag.Parse()

	if *server == "" {
		fmt.Fprintln(os.Stderr, "usage: mcpbridge -server <script> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	level := xlog.ERROR
	if *verbose {
		level = xlog.DEBUG
	}
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(level)

	f, err := llmfactory.Load(*cfgFile)
	if err != nil {
		return err
	}

	var llmModel llms.Model
	if *model != "" {
		llmModel, err = f.ModelByName(*model)
	} else {
		llmModel, err = f.DefaultModel()
	}
	if err != nil {
		return err
	}

	opts := []bridge.Option{
		bridge.WithMaxToolRounds(*rounds),
	}
	if *chatID != "" {
		opts = append(opts, bridge.WithChatID(*chatID))
	}
	if *verbose {
		opts = append(opts, bridge.WithCallback(callbacks.NewPrinter(os.Stderr, callbacks.ModeVerbose)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	b := bridge.New(llmModel, opts...)
	if err := b.Connect(ctx, bridge.ServerIdentity{
		ServerScript: *server,
		ClientName:   "mcpbridge",
	}); err != nil {
		return err
	}
	defer b.Close()

	return b.RunInteractiveSession(ctx, os.Stdin, os.Stdout)
}
