package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mcprepl/mcprepl/internal/discover"
	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/internal/relay"
	"github.com/mcprepl/mcprepl/internal/server"
	"github.com/mcprepl/mcprepl/internal/tools"
	"github.com/mcprepl/mcprepl/internal/transport"
)

// evalTool plays the worker's REPL: it "evaluates" an expression by
// echoing it back with a result marker.
type evalTool struct{}

func (evalTool) Name() string        { return "exec_repl" }
func (evalTool) Description() string { return "Evaluate an expression" }
func (evalTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}}}`)
}
func (evalTool) Execute(input json.RawMessage) (string, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", err
	}
	return "=> " + args.Expression, nil
}

// TestRelayToWorkerEndToEnd drives the relay's stdio transport against a
// real worker server listening in a temp project directory.
func TestRelayToWorkerEndToEnd(t *testing.T) {
	projectDir := t.TempDir()

	// Worker side.
	workerRegistry := tools.NewRegistry()
	if err := workerRegistry.Register(evalTool{}); err != nil {
		t.Fatalf("register worker tool: %v", err)
	}
	worker := server.New(workerRegistry, filepath.Join(projectDir, ".mcp-repl.sock"), mcp.ServerInfo{
		Name:    "mcp-repl-server",
		Version: "test",
	})
	if err := worker.Start(); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	defer worker.Stop()

	pidPath := filepath.Join(projectDir, ".mcp-repl.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		t.Fatalf("write pid marker: %v", err)
	}

	// Relay side.
	cache := discover.NewCache(".mcp-repl.sock", time.Minute)
	fwd := relay.NewForwarder(cache, ".mcp-repl.pid", 5*time.Second)

	relayRegistry := tools.NewRegistry()
	for _, tool := range relay.GetTools(fwd) {
		if err := relayRegistry.Register(tool); err != nil {
			t.Fatalf("register relay tool: %v", err)
		}
	}
	handler := mcp.NewHandler(relayRegistry, mcp.ServerInfo{Name: "mcp-repl-relay", Version: "test"})

	callArgs, _ := json.Marshal(map[string]interface{}{
		"name": "exec_repl",
		"arguments": map[string]string{
			"project_dir": projectDir,
			"expression":  "6 * 7",
		},
	})
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":%s}`, callArgs),
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := transport.NewStdio(handler).Run(strings.NewReader(input), &out); err != nil {
		t.Fatalf("stdio run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses (notification is silent), got %d: %s", len(lines), out.String())
	}

	t.Run("Initialize", func(t *testing.T) {
		var resp map[string]interface{}
		if err := json.Unmarshal([]byte(lines[0]), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp["id"] != float64(1) {
			t.Errorf("expected id 1, got %v", resp["id"])
		}
		result, _ := resp["result"].(map[string]interface{})
		if result["protocolVersion"] != "2024-11-05" {
			t.Errorf("unexpected protocol version: %v", result["protocolVersion"])
		}
	})

	t.Run("ToolsList", func(t *testing.T) {
		var resp map[string]interface{}
		if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		result, _ := resp["result"].(map[string]interface{})
		toolList, _ := result["tools"].([]interface{})
		if len(toolList) != 3 {
			t.Fatalf("expected 3 relay tools, got %d", len(toolList))
		}
	})

	t.Run("ForwardedCall", func(t *testing.T) {
		var resp map[string]interface{}
		if err := json.Unmarshal([]byte(lines[2]), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp["id"] != float64(3) {
			t.Errorf("expected id 3, got %v", resp["id"])
		}
		if !strings.Contains(lines[2], "=> 6 * 7") {
			t.Errorf("expected the worker's evaluation in the response, got %s", lines[2])
		}
	})

	t.Run("WorkerStopRemovesSocket", func(t *testing.T) {
		if err := worker.Stop(); err != nil {
			t.Fatalf("stop: %v", err)
		}
		if _, err := os.Stat(worker.SocketPath()); !os.IsNotExist(err) {
			t.Errorf("socket should be gone after stop, got %v", err)
		}
	})
}
