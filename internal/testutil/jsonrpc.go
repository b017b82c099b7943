package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// JSONRPCRequest represents a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is returned by a MockRPC handler to answer with a JSON-RPC error.
type RPCError struct {
	Code    int
	Message string
}

// RPCHandlerFunc answers one method call. Params holds the raw JSON params array.
type RPCHandlerFunc func(params json.RawMessage) (any, *RPCError)

// MockRPC is a JSON-RPC node answering registered methods. Unknown methods
// get a -32601 error.
type MockRPC struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandlerFunc
	requests []JSONRPCRequest
}

// StartMockRPC starts a mock node; it is closed when the test ends.
func StartMockRPC(t *testing.T) *MockRPC {
	t.Helper()

	m := &MockRPC{handlers: make(map[string]RPCHandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		var req JSONRPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			WriteRPCError(w, json.RawMessage(`1`), -32700, "parse error")
			return
		}

		m.mu.Lock()
		m.requests = append(m.requests, req)
		handler, ok := m.handlers[req.Method]
		m.mu.Unlock()

		if !ok {
			WriteRPCError(w, req.ID, -32601, "method not found: "+req.Method)
			return
		}
		result, rpcErr := handler(req.Params)
		if rpcErr != nil {
			WriteRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
			return
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			WriteRPCError(w, req.ID, -32603, err.Error())
			return
		}
		WriteRPCResult(w, req.ID, encoded)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers the handler for method.
func (m *MockRPC) Handle(method string, fn RPCHandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = fn
}

// Requests returns every request received so far.
func (m *MockRPC) Requests() []JSONRPCRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JSONRPCRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// WriteRPCResult writes a JSON-RPC success response.
func WriteRPCResult(w http.ResponseWriter, id, result json.RawMessage) {
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"result":  result,
	})
}

// WriteRPCError writes a JSON-RPC error response.
func WriteRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	errJSON, _ := json.Marshal(map[string]interface{}{"code": code, "message": message})
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"error":   json.RawMessage(errJSON),
	})
}
