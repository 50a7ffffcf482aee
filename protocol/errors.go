package protocol

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Implementation-defined server error codes.
// All of them sit inside the -32000..-32099 band reserved for servers.
const (
	CodeServerError = -32000
	CodeTimeout     = -32001
	CodeRateLimited = -32003
)

// Reserved code range. Application-defined codes must fall outside it.
const (
	reservedMin = -32768
	reservedMax = -32000
)

// IsReservedCode reports whether code lies in the range reserved for the protocol.
func IsReservedCode(code int) bool {
	return code >= reservedMin && code <= reservedMax
}

// CodeMessage returns the canonical message for a standard code,
// or "Server error" for any other code in the reserved range.
func CodeMessage(code int) string {
	switch code {
	case CodeParseError:
		return "Parse error"
	case CodeInvalidRequest:
		return "Invalid Request"
	case CodeMethodNotFound:
		return "Method not found"
	case CodeInvalidParams:
		return "Invalid params"
	case CodeInternalError:
		return "Internal error"
	}
	if IsReservedCode(code) {
		return "Server error"
	}
	return "Application error"
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "jsonrpc: <nil>"
	}
	return fmt.Sprintf("jsonrpc: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewError creates an error with an arbitrary code.
// An empty message is replaced by the canonical message for the code.
func NewError(code int, msg string) *Error {
	if msg == "" {
		msg = CodeMessage(code)
	}
	return &Error{Code: code, Message: msg}
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return NewError(CodeParseError, msg)
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return NewError(CodeInvalidRequest, msg)
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(msg string) *Error {
	return NewError(CodeMethodNotFound, msg)
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return NewError(CodeInvalidParams, msg)
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return NewError(CodeInternalError, msg)
}

// NewServerError creates a generic server error (-32000).
func NewServerError(msg string) *Error {
	return NewError(CodeServerError, msg)
}

// NewTimeout creates a timeout error (-32001).
func NewTimeout(msg string) *Error {
	return NewError(CodeTimeout, msg)
}

// NewRateLimited creates a rate limited error (-32003).
func NewRateLimited(msg string) *Error {
	return NewError(CodeRateLimited, msg)
}
