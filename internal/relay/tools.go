package relay

import (
	"context"
	"encoding/json"

	"github.com/mcprepl/mcprepl/internal/tools"
)

// GetTools returns the relay's tool set. Each tool validates its own
// parameters and forwards the call to the worker that owns the project
// directory; every failure comes back as plain text.
func GetTools(fwd *Forwarder) []tools.Tool {
	return []tools.Tool{
		&ExecReplTool{fwd: fwd},
		&InvestigateEnvironmentTool{fwd: fwd},
		&UsageInstructionsTool{fwd: fwd},
	}
}

type ExecReplTool struct {
	fwd *Forwarder
}

func (t *ExecReplTool) Name() string {
	return "exec_repl"
}

func (t *ExecReplTool) Description() string {
	return `Execute code in a shared, persistent REPL session.

**PREREQUISITE**: Before using this tool, you MUST first call the ` + "`usage_instructions`" + ` tool.

The tool returns raw text output containing: all printed content from stdout and stderr streams, plus the text representation of the expression's return value (unless the expression ends with a semicolon).

You may use this REPL to execute code, run test sets, get function documentation, etc.`
}

func (t *ExecReplTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_dir": {
				"type": "string",
				"description": "Directory where the project is located (used to find the REPL socket)"
			},
			"expression": {
				"type": "string",
				"description": "Expression to evaluate (e.g., '2 + 3 * 4')"
			}
		},
		"required": ["project_dir", "expression"]
	}`)
}

func (t *ExecReplTool) Execute(input json.RawMessage) (string, error) {
	var args struct {
		ProjectDir string `json:"project_dir"`
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", tools.NewToolExecutionError(t.Name(), err)
	}

	if args.ProjectDir == "" {
		return "Error: project_dir parameter is required", nil
	}
	if args.Expression == "" {
		return "Error: expression parameter is required", nil
	}

	return t.fwd.Call(context.Background(), "exec_repl", args.ProjectDir, map[string]interface{}{
		"expression": args.Expression,
	}), nil
}

type InvestigateEnvironmentTool struct {
	fwd *Forwarder
}

func (t *InvestigateEnvironmentTool) Name() string {
	return "investigate_environment"
}

func (t *InvestigateEnvironmentTool) Description() string {
	return `Investigate the current REPL environment including working directory, active project, and loaded packages.

This tool provides comprehensive information about:
- Current working directory
- Active project and its details
- All packages in the environment with development status
- Development packages with their file system paths
- Hot-reload status`
}

func (t *InvestigateEnvironmentTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_dir": {
				"type": "string",
				"description": "Directory where the project is located"
			}
		},
		"required": ["project_dir"]
	}`)
}

func (t *InvestigateEnvironmentTool) Execute(input json.RawMessage) (string, error) {
	return forwardSimple(t.fwd, t.Name(), input)
}

type UsageInstructionsTool struct {
	fwd *Forwarder
}

func (t *UsageInstructionsTool) Name() string {
	return "usage_instructions"
}

func (t *UsageInstructionsTool) Description() string {
	return "Get detailed instructions for proper REPL usage, best practices, and workflow guidelines."
}

func (t *UsageInstructionsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project_dir": {
				"type": "string",
				"description": "Directory where the project is located"
			}
		},
		"required": ["project_dir"]
	}`)
}

func (t *UsageInstructionsTool) Execute(input json.RawMessage) (string, error) {
	return forwardSimple(t.fwd, t.Name(), input)
}

// forwardSimple handles the tools whose only parameter is project_dir.
func forwardSimple(fwd *Forwarder, name string, input json.RawMessage) (string, error) {
	var args struct {
		ProjectDir string `json:"project_dir"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", tools.NewToolExecutionError(name, err)
	}

	if args.ProjectDir == "" {
		return "Error: project_dir parameter is required", nil
	}

	return fwd.Call(context.Background(), name, args.ProjectDir, map[string]interface{}{}), nil
}
