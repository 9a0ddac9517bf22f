package dispatch

import (
	"bytes"
	"encoding/json"
)

// JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Request is a JSON-RPC 2.0 request or notification. ID is kept raw so
// string, numeric and null ids are echoed back unchanged.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the sender expects no response. Only an
// absent id makes a notification; "id": null is still answered.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

func resultResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// ParseRequest decodes and checks one JSON-RPC message.
func ParseRequest(data []byte) (*Request, *RPCError) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return &req, &RPCError{Code: InvalidRequest, Message: "Invalid request: jsonrpc must be \"2.0\""}
	}
	if req.Method == "" {
		return &req, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing method field"}
	}
	return &req, nil
}

// ParseMessage splits a frame into requests. A frame starting with '[' is a
// batch.
func ParseMessage(data []byte) ([]json.RawMessage, bool, *RPCError) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, &RPCError{Code: ParseError, Message: "Parse error", Data: "empty message"}
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{trimmed}, false, nil
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, true, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}
	if len(batch) == 0 {
		return nil, true, &RPCError{Code: InvalidRequest, Message: "Invalid request: empty batch"}
	}
	return batch, true, nil
}
