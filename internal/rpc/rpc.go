// Package rpc exposes the task store as named operations over JSON-RPC 2.0.
//
// Methods take params either as an object or positionally:
//
//	add_task                {"description","due_date"|"date","important"} or [description, date, important]
//	get_task                {"task_id"} or [task_id]
//	toggle_task_completion  {"task_id"} or [task_id]
//	toggle_task_importance  {"task_id"} or [task_id]
//	delete_task             {"task_id"} or [task_id]
//	get_tasks, get_important_tasks, get_completed_tasks, get_stats
//
// The caller is always taken from the request context. Batch requests are
// rejected with Invalid Request.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"net/http"
	"slices"

	"todo-list-backend/internal/analytics"
	"todo-list-backend/internal/identity"
	"todo-list-backend/internal/tasks"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response. Result holds the encoded
// value, so a null get_task result is still present on success.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	Unauthorized = -32000
)

const maxBodyBytes = 1 << 20

type method func(r *http.Request, p identity.Principal, params json.RawMessage) (interface{}, error)

type Server struct {
	store   *tasks.Store
	tracker *analytics.Tracker
	logger  *log.Logger
	methods map[string]method
}

func NewServer(store *tasks.Store, tracker *analytics.Tracker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{store: store, tracker: tracker, logger: logger}
	s.methods = map[string]method{
		"add_task":               s.addTask,
		"get_task":               s.getTask,
		"toggle_task_completion": s.toggleCompletion,
		"toggle_task_importance": s.toggleImportance,
		"get_tasks":              s.getTasks,
		"get_important_tasks":    s.getImportantTasks,
		"get_completed_tasks":    s.getCompletedTasks,
		"delete_task":            s.deleteTask,
		"get_stats":              s.getStats,
	}
	return s
}

// Methods lists the callable operation names.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.methods))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, nil, ParseError, "Parse error", err.Error())
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		s.writeError(w, nil, InvalidRequest, "Invalid Request", "batch requests are not supported")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, ParseError, "Parse error", err.Error())
		return
	}
	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", "jsonrpc must be 2.0")
		return
	}
	if req.Method == "" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", "method is required")
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		s.writeError(w, req.ID, MethodNotFound, "Method not found", req.Method)
		return
	}

	p, ok := identity.FromContext(r.Context())
	if !ok {
		s.writeError(w, req.ID, Unauthorized, "Unauthorized", nil)
		return
	}

	result, err := m(r, p, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		s.logger.Printf("[ERROR] rpc %s: %v", req.Method, err)
		s.writeError(w, req.ID, InternalError, "Internal error", err.Error())
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, req.ID, InternalError, "Internal error", err.Error())
		return
	}
	s.write(w, Response{JSONRPC: "2.0", ID: req.ID, Result: b})
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, msg string, data interface{}) {
	s.write(w, Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg, Data: data},
	})
}

// JSON-RPC errors travel in the body; the HTTP status is always 200.
func (s *Server) write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Printf("[ERROR] rpc encode: %v", err)
	}
}
