// Package stdio runs a tool server as a subprocess and speaks
// newline-delimited JSON-RPC 2.0 over its stdin and stdout.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge/mcp/transport", "stdio")

// shutdownGrace is how long Close waits for the server to exit after SIGTERM
// before killing it.
const shutdownGrace = 5 * time.Second

// CommandForScript maps a server script path to the command that runs it.
// Python and Node scripts are run through their interpreters; anything else
// must be executable and is run directly.
func CommandForScript(path string) (string, []string, error) {
	switch filepath.Ext(path) {
	case ".py":
		return "python3", []string{path}, nil
	case ".js":
		return "node", []string{path}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "unable to stat server %q", path)
	}
	if info.Mode()&0o111 == 0 {
		return "", nil, errors.Newf("server must be a .py or .js script, or an executable: %s", path)
	}
	return path, nil, nil
}

// Transport spawns the server subprocess and exchanges one JSON-RPC message
// per line over its pipes. Server stderr is surfaced through the error
// handler; it is diagnostic output, not part of the protocol.
type Transport struct {
	command string
	args    []string
	env     []string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	writeMu        sync.Mutex

	started bool
	closing bool
	exited  chan struct{}
}

// New creates a transport that will run the given command when started.
func New(command string, args ...string) *Transport {
	return &Transport{
		command: command,
		args:    args,
		exited:  make(chan struct{}),
	}
}

// WithEnv appends variables, in KEY=VALUE form, to the server environment.
func (t *Transport) WithEnv(env ...string) *Transport {
	t.env = append(t.env, env...)
	return t
}

// Start implements Transport.Start
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("transport already started")
	}

	cmd := exec.Command(t.command, t.args...)
	if len(t.env) > 0 {
		cmd.Env = append(os.Environ(), t.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.mu.Unlock()
		return errors.Wrap(err, "failed to open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.mu.Unlock()
		return errors.Wrap(err, "failed to open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.mu.Unlock()
		return errors.Wrap(err, "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return errors.Wrapf(err, "failed to start server %q", t.command)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.started = true
	t.mu.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG,
		"command", t.command,
		"pid", cmd.Process.Pid,
	)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		t.readMessages(ctx, stdout)
	}()
	go func() {
		defer readers.Done()
		t.readStderr(stderr)
	}()
	go func() {
		// The pipes must be drained before Wait releases them.
		readers.Wait()
		err := cmd.Wait()

		t.mu.RLock()
		closing := t.closing
		closeHandler := t.closeHandler
		t.mu.RUnlock()

		if err != nil && !closing {
			t.reportError(errors.Wrap(err, "server exited"))
		}
		close(t.exited)
		if closeHandler != nil {
			closeHandler()
		}
	}()

	return nil
}

// Send implements Transport.Send
func (t *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	t.mu.RLock()
	started := t.started
	closing := t.closing
	stdin := t.stdin
	t.mu.RUnlock()

	if !started || closing {
		return errors.New("transport not started")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := stdin.Write(append(jsonData, '\n')); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Close implements Transport.Close. It closes the server's stdin, sends
// SIGTERM, and kills the process if it does not exit within the grace period.
func (t *Transport) Close() error {
	t.mu.Lock()
	if !t.started || t.closing {
		closeHandler := t.closeHandler
		started := t.started
		t.mu.Unlock()
		if !started && closeHandler != nil {
			closeHandler()
		}
		return nil
	}
	t.closing = true
	stdin := t.stdin
	cmd := t.cmd
	t.mu.Unlock()

	_ = stdin.Close()
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-t.exited:
	case <-time.After(shutdownGrace):
		logger.KV(xlog.WARNING,
			"command", t.command,
			"reason", "kill after grace period",
		)
		_ = cmd.Process.Kill()
		<-t.exited
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *Transport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *Transport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

func (t *Transport) readMessages(ctx context.Context, stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			t.dispatch(ctx, trimmed)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.reportError(errors.Wrap(err, "failed to read server stdout"))
			}
			return
		}
	}
}

func (t *Transport) dispatch(ctx context.Context, line string) {
	message, err := transport.DeserializeMessage(line)
	if err != nil {
		t.reportError(err)
		return
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(ctx, message)
	}
}

func (t *Transport) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			t.reportError(errors.Newf("server stderr: %s", line))
		}
	}
}

func (t *Transport) reportError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(err)
	} else {
		logger.KV(xlog.ERROR, "err", err.Error())
	}
}
