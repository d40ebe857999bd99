package mcp

import (
	"bytes"
	"encoding/json"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// JSON-RPC 2.0 protocol types for MCP communication.

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 reserved error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application error codes.
const (
	CodeRuntimeUnavailable = -32001
	CodeToolNotFound       = -32002
)

// Methods served by the dispatcher.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// Request represents a JSON-RPC 2.0 request. ID is nil when the member is
// absent, which makes the request a notification; an explicit null id is
// kept as the literal "null" and still expects a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id member.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result and
// Error is set. A nil ID is encoded as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// ToolResult is the result of tools/call, for successful and failed tool
// executions alike.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// ContentBlock represents a piece of content in the result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult builds a single text block result.
func TextResult(text string, isError bool) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// ListToolsResult is returned by tools/list.
type ListToolsResult struct {
	Tools []mcpgo.Tool `json:"tools"`
}

// InitializeParams is sent by the client to open a session.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// InitializeResult is returned after initialization.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// Implementation names an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities advertises what the server supports.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes the tools capability.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Constructors for the error objects the server emits.

func newParseError() *Error {
	return &Error{Code: CodeParseError, Message: "Parse error"}
}

func newInvalidRequest(reason string) *Error {
	e := &Error{Code: CodeInvalidRequest, Message: "Invalid Request"}
	if reason != "" {
		e.Data = reason
	}
	return e
}

func newMethodNotFound() *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found"}
}

// FieldError is the data of an invalid params error.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func newInvalidParams(field, reason string) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: FieldError{Field: field, Reason: reason}}
}

func newInternalError(cause string) *Error {
	e := &Error{Code: CodeInternalError, Message: "Internal error"}
	if cause != "" {
		e.Data = cause
	}
	return e
}

func newRuntimeUnavailable(cause string) *Error {
	return &Error{Code: CodeRuntimeUnavailable, Message: "Container runtime unavailable", Data: cause}
}

func newToolNotFound(name string) *Error {
	return &Error{Code: CodeToolNotFound, Message: "Tool not found", Data: map[string]string{"name": name}}
}

var nullID = json.RawMessage("null")

// errorResponse builds an error response; a nil id is answered with null.
func errorResponse(id json.RawMessage, err *Error) *Response {
	if id == nil {
		id = nullID
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

// resultResponse marshals result into a success response.
func resultResponse(id json.RawMessage, result any) *Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, newInternalError("marshal result: "+err.Error()))
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: data}
}

// isNull reports whether raw is the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), nullID)
}
