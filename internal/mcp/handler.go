package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/internal/tools"
	"github.com/mcprepl/mcprepl/pkg/protocol"
	"github.com/mcprepl/mcprepl/pkg/version"
)

var log = logger.ForComponent("mcp")

// Handler is the pure request-to-response mapping for the MCP dialect.
// It performs no I/O of its own; transports feed it parsed requests.
type Handler struct {
	registry *tools.Registry
	info     ServerInfo
}

func NewHandler(registry *tools.Registry, info ServerInfo) *Handler {
	return &Handler{
		registry: registry,
		info:     info,
	}
}

// Handle maps one request to one response. A nil return means the request
// was a notification and no response must be written.
func (h *Handler) Handle(req *Request) *Response {
	resp := &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch req.Method {
	case "":
		resp.Error = &protocol.JSONRPCError{
			Code:    protocol.CodeInvalidRequest,
			Message: "Invalid Request: missing method",
		}
	case "initialize":
		resp.Result = h.handleInitialize()
	case "notifications/initialized":
		return nil
	case "tools/list":
		resp.Result = h.handleListTools()
	case "tools/call":
		result, rpcErr := h.handleCallTool(req)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
	default:
		resp.Error = &protocol.JSONRPCError{
			Code:    protocol.CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return resp
}

func (h *Handler) handleInitialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: version.ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		ServerInfo: map[string]interface{}{
			"name":    h.info.Name,
			"version": h.info.Version,
		},
	}
}

func (h *Handler) handleListTools() ListToolsResult {
	toolsList := h.registry.List()
	out := make([]protocol.Tool, 0, len(toolsList))

	for _, t := range toolsList {
		var schema map[string]interface{}
		if err := json.Unmarshal(t.Schema(), &schema); err != nil {
			log.Warn("tool schema is not a JSON object", "tool", t.Name(), "error", err)
			schema = map[string]interface{}{"type": "object"}
		}

		out = append(out, protocol.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		})
	}

	return ListToolsResult{Tools: out}
}

func (h *Handler) handleCallTool(req *Request) (result interface{}, rpcErr *protocol.JSONRPCError) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			rpcErr = &protocol.JSONRPCError{
				Code:    protocol.CodeInternalError,
				Message: fmt.Sprintf("Tool execution error: %v", r),
			}
			log.Error("tool panic recovered",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	callReq := struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}{}

	paramsData, err := json.Marshal(req.Params)
	if err != nil {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.CodeInvalidRequest,
			Message: fmt.Sprintf("failed to read params: %v", err),
		}
	}
	if err := json.Unmarshal(paramsData, &callReq); err != nil {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.CodeInvalidRequest,
			Message: fmt.Sprintf("failed to parse tool call request: %v", err),
		}
	}

	tool, ok := h.registry.Get(callReq.Name)
	if !ok {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.CodeInvalidParams,
			Message: fmt.Sprintf("Tool not found: %s", callReq.Name),
		}
	}

	args := callReq.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	text, err := tool.Execute(args)
	if err != nil {
		var toolErr *tools.ToolError
		if errors.As(err, &toolErr) {
			return nil, &protocol.JSONRPCError{
				Code:    toolErr.Code,
				Message: toolErr.Message,
			}
		}
		return nil, &protocol.JSONRPCError{
			Code:    protocol.CodeInternalError,
			Message: fmt.Sprintf("Tool execution error: %v", err),
		}
	}

	return protocol.CallToolResult{
		Content: []protocol.TextContent{
			{Type: "text", Text: text},
		},
	}, nil
}
