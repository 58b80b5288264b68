package tools

import "encoding/json"

// HealthTool answers a liveness ping over the normal tools/call path, so a
// client can verify the worker end to end without touching the REPL.
type HealthTool struct{}

func NewHealthTool() *HealthTool {
	return &HealthTool{}
}

func (t *HealthTool) Name() string {
	return "health"
}

func (t *HealthTool) Description() string {
	return "Check worker health status"
}

func (t *HealthTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *HealthTool) Execute(input json.RawMessage) (string, error) {
	return "ok", nil
}
