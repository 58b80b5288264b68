package mcp

import "github.com/mcprepl/mcprepl/pkg/protocol"

type Request = protocol.JSONRPCRequest
type Response = protocol.JSONRPCResponse

// ServerInfo identifies the serving side in the initialize handshake. The
// relay and the worker run the same engine with different identities.
type ServerInfo struct {
	Name    string
	Version string
}

type InitializeResult struct {
	ProtocolVersion string      `json:"protocolVersion"`
	Capabilities    interface{} `json:"capabilities"`
	ServerInfo      interface{} `json:"serverInfo"`
}

type ListToolsResult struct {
	Tools []protocol.Tool `json:"tools"`
}
