// Package protocol provides the JSON-RPC 2.0 message shapes the transport
// layer needs. The transport never interprets payload semantics; this package
// exists for best-effort request-id extraction and for building the structured
// error payloads returned on HTTP failure paths.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents standard JSON-RPC 2.0 error codes
type ErrorCode int

// Standard error codes as per JSON-RPC 2.0 specification
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// Transport-level error codes surfaced to callers
const (
	// RequestTimeout indicates no correlated reply arrived in time
	RequestTimeout ErrorCode = -32001
	// ServiceUnavailable indicates the transport is shutting down
	ServiceUnavailable ErrorCode = -32002
)

// JSONRPCMessage represents a JSON-RPC 2.0 message
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPCMessage
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response
func NewErrorResponse(id interface{}, code ErrorCode, message string, data interface{}) *Response {
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// MarshalErrorResponse renders an error response as wire bytes. Marshalling a
// map of primitives cannot fail, so the fallback path is a static payload.
func MarshalErrorResponse(id interface{}, code ErrorCode, message string, data interface{}) []byte {
	out, err := json.Marshal(NewErrorResponse(id, code, message, data))
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return out
}

// ExtractRequestID best-effort-parses the protocol-level id from a raw
// request payload. Used for diagnostics and error-payload propagation only;
// a missing or unparseable id yields nil, never an error.
func ExtractRequestID(payload []byte) interface{} {
	var probe struct {
		ID interface{} `json:"id"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(payload), &probe); err != nil {
		return nil
	}
	return probe.ID
}

// IsRequest reports whether the raw message looks like a request
// (has both a method and an id).
func IsRequest(data []byte) bool {
	var probe struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Method != "" && len(probe.ID) > 0 && string(probe.ID) != "null"
}

// IsResponse reports whether the raw message looks like a response
// (has an id and a result or error member).
func IsResponse(data []byte) bool {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.ID) > 0 && (len(probe.Result) > 0 || len(probe.Error) > 0)
}

// IsNotification reports whether the raw message looks like a notification
// (has a method but no id).
func IsNotification(data []byte) bool {
	var probe struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Method != "" && (len(probe.ID) == 0 || string(probe.ID) == "null")
}
