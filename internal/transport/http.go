package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/pkg/protocol"
)

var httpLog = logger.ForComponent("transport")

// HTTPServer serves the protocol over HTTP: POST carries one JSON-RPC
// document, GET /health answers a liveness probe, and OPTIONS is answered
// for CORS preflight with permissive headers.
type HTTPServer struct {
	handler *mcp.Handler
	router  *chi.Mux
	srv     *http.Server
}

func NewHTTP(handler *mcp.Handler) *HTTPServer {
	s := &HTTPServer{
		handler: handler,
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/*", s.handleBadGet)
	s.router.Post("/*", s.handlePost)

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *HTTPServer) Router() http.Handler { return s.router }

// ListenAndServe binds localhost on the given port and serves until
// Shutdown is called.
func (s *HTTPServer) ListenAndServe(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: s.router,
	}
	httpLog.Info("http transport listening", "addr", s.srv.Addr)

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleBadGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusBadRequest, errorResponse(nil, protocol.CodeInvalidRequest, "Use POST for JSON-RPC requests"))
}

func (s *HTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(nil, protocol.CodeInternalError, fmt.Sprintf("Internal error: %v", err)))
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, protocol.CodeInvalidRequest, "Empty request body"))
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, protocol.CodeParseError, fmt.Sprintf("Parse error: %v", err)))
		return
	}

	resp, panicked := s.safeHandle(&req)
	if panicked {
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	if resp == nil {
		// Notification: nothing to send back.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// safeHandle turns a panic escaping the handler into a -32603 error
// response, so the client still sees a JSON-RPC document rather than a
// bare 500 from the recovery middleware.
func (s *HTTPServer) safeHandle(req *mcp.Request) (resp *mcp.Response, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			httpLog.Error("handler panic", "method", req.Method, "panic", r)
			resp = errorResponse(req.ID, protocol.CodeInternalError, fmt.Sprintf("Internal error: %v", r))
			panicked = true
		}
	}()
	return s.handler.Handle(req), false
}

func errorResponse(id interface{}, code int, message string) *mcp.Response {
	return &mcp.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &protocol.JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httpLog.Warn("failed to write response", "error", err)
	}
}
