package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/mcprepl/mcprepl/internal/discover"
	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/pkg/protocol"
)

var log = logger.ForComponent("relay")

// Forwarder locates the worker socket governing a project directory,
// verifies the worker still looks alive, and exchanges exactly one
// tools/call request/response with it. Every failure along the way is
// rendered as descriptive text rather than a protocol error: the ultimate
// consumer is a text-oriented agent, not a protocol-aware client.
type Forwarder struct {
	cache   *discover.Cache
	pidName string
	timeout time.Duration
}

func NewForwarder(cache *discover.Cache, pidName string, timeout time.Duration) *Forwarder {
	return &Forwarder{
		cache:   cache,
		pidName: pidName,
		timeout: timeout,
	}
}

const startHint = "Start the server with:\n  mcprepl-server --dir <project_dir>"

// Call forwards one tool invocation to the worker responsible for startDir
// and returns the worker's text output. A single attempt is made; no retry.
func (f *Forwarder) Call(ctx context.Context, toolName, startDir string, args map[string]interface{}) string {
	socketPath, ok := f.cache.Resolve(startDir)
	if !ok {
		return fmt.Sprintf("Error: REPL server not found in %s. %s", startDir, startHint)
	}

	if !discover.Alive(socketPath, f.pidName) {
		return fmt.Sprintf("Error: REPL server not running (socket exists but process dead). %s", startHint)
	}

	conn, err := Do(ctx, f.timeout, func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		c, err := d.DialContext(ctx, "unix", socketPath)
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			// The caller already gave up on this dial.
			c.Close()
			return nil, ctx.Err()
		}
		return c, nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Sprintf("Error: timed out connecting to REPL server at %s", socketPath)
		}
		return fmt.Sprintf("Error: socket error: %v. Is the REPL server running?", err)
	}

	return f.exchange(ctx, conn, toolName, args)
}

// exchange sends one tools/call request over conn and renders the reply.
// The connection is closed on every path.
func (f *Forwarder) exchange(ctx context.Context, conn net.Conn, toolName string, args map[string]interface{}) string {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
	rpc := jsonrpc2.NewConn(ctx, stream, noopHandler{})
	defer rpc.Close()

	if args == nil {
		args = map[string]interface{}{}
	}
	params := map[string]interface{}{
		"name":      toolName,
		"arguments": args,
	}

	var raw json.RawMessage
	_, err := Do(ctx, f.timeout, func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, rpc.Call(callCtx, "tools/call", params, &raw)
	})
	if err != nil {
		var rpcErr *jsonrpc2.Error
		switch {
		case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
			return "Error: timed out waiting for REPL server response"
		case errors.As(err, &rpcErr):
			return fmt.Sprintf("Error from REPL server: %s", rpcErr.Message)
		case errors.Is(err, jsonrpc2.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			return "Error: REPL server closed connection"
		default:
			return fmt.Sprintf("Error communicating with REPL server: %v", err)
		}
	}

	return renderResult(raw)
}

// renderResult extracts the textual content from a tools/call result, or
// stringifies whatever the worker sent when it is not in content form.
func renderResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var result protocol.CallToolResult
	if err := json.Unmarshal(raw, &result); err == nil && len(result.Content) > 0 {
		return result.Content[0].Text
	}

	log.Debug("worker result had no textual content", "result", string(raw))
	return string(raw)
}

// noopHandler satisfies jsonrpc2's handler requirement; the worker never
// issues requests back to the relay.
type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {}
