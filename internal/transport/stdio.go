package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/pkg/protocol"
)

// Stdio serves the protocol over a line-oriented reader/writer pair,
// normally the process's stdin and stdout.
type Stdio struct {
	handler *mcp.Handler
}

func NewStdio(handler *mcp.Handler) *Stdio {
	return &Stdio{handler: handler}
}

// Run processes requests until the reader is exhausted. Unparsable lines
// answer with a parse error and the loop continues.
func (s *Stdio) Run(reader io.Reader, writer io.Writer) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineSize)
	encoder := json.NewEncoder(writer)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req mcp.Request
		if err := json.Unmarshal(line, &req); err != nil {
			parseErr := &mcp.Response{
				JSONRPC: "2.0",
				Error: &protocol.JSONRPCError{
					Code:    protocol.CodeParseError,
					Message: fmt.Sprintf("Parse error: %v", err),
				},
			}
			if err := encoder.Encode(parseErr); err != nil {
				return err
			}
			continue
		}

		resp := s.handler.Handle(&req)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}

	return scanner.Err()
}
