package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/pkg/protocol"
)

var sessionLog = logger.ForComponent("session")

// session drives one accepted connection: read a line, dispatch it through
// the handler, write the response, repeat until the peer hangs up. Requests
// on one connection are processed strictly in arrival order.
type session struct {
	id      string
	conn    net.Conn
	handler *mcp.Handler
	done    chan struct{}
}

func newSession(conn net.Conn, handler *mcp.Handler) *session {
	return &session{
		id:      uuid.NewString(),
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}
}

func (s *session) run() {
	defer close(s.done)
	defer s.conn.Close()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineSize)
	writer := bufio.NewWriter(s.conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		resp := s.dispatch(line)
		if resp == nil {
			// Notification: nothing to write.
			continue
		}

		data, err := json.Marshal(resp)
		if err != nil {
			sessionLog.Error("failed to marshal response", "session", s.id, "error", err)
			continue
		}
		data = append(data, '\n')

		if _, err := writer.Write(data); err != nil {
			sessionLog.Warn("write failed", "session", s.id, "error", err)
			return
		}
		if err := writer.Flush(); err != nil {
			sessionLog.Warn("flush failed", "session", s.id, "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		sessionLog.Warn("read failed", "session", s.id, "error", err)
	}
}

// dispatch parses one line and runs it through the handler. A malformed
// line answers with an internal error instead of dropping the connection.
func (s *session) dispatch(line []byte) *mcp.Response {
	var req mcp.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return &mcp.Response{
			JSONRPC: "2.0",
			ID:      recoverID(line),
			Error: &protocol.JSONRPCError{
				Code:    protocol.CodeInternalError,
				Message: fmt.Sprintf("Internal error: %v", err),
			},
		}
	}
	return s.handler.Handle(&req)
}

// recoverID makes a best-effort attempt to pull the request id out of a
// line that failed to parse as a full request.
func recoverID(line []byte) interface{} {
	var partial struct {
		ID interface{} `json:"id"`
	}
	if err := json.Unmarshal(line, &partial); err != nil {
		return nil
	}
	return partial.ID
}
