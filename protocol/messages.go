package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// ReservedPrefix marks method names reserved for protocol extensions.
const ReservedPrefix = "rpc."

// Request represents a JSON-RPC 2.0 request or notification.
//
// ID is nil when the member is absent (a notification) and holds the
// literal `null` when the client sent an explicit null id.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// UnmarshalJSON decodes a request while keeping track of which members
// were present. An explicit `"id": null` is preserved as the raw bytes
// `null` so it is never mistaken for a notification. `"params": null`
// is read as absent params.
func (r *Request) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("request must be a JSON object")
	}

	*r = Request{}

	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &r.JSONRPC); err != nil {
			return errors.New("jsonrpc member must be a string")
		}
	}
	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &r.Method); err != nil {
			return errors.New("method member must be a string")
		}
	}
	if raw, ok := fields["params"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		r.Params = raw
	}
	if raw, ok := fields["id"]; ok {
		r.ID = raw
	}
	return nil
}

// IsNotification returns true if this request has no ID (is a notification).
// A request carrying an explicit null id is not a notification.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Validate checks the request against the JSON-RPC 2.0 request grammar.
// Every violation is reported as an invalid request error (-32600).
func (r *Request) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return NewInvalidRequest(fmt.Sprintf("invalid JSON-RPC version, must be %q", JSONRPCVersion))
	}
	if r.Method == "" {
		return NewInvalidRequest("method name cannot be empty")
	}
	if strings.HasPrefix(r.Method, ReservedPrefix) {
		return NewInvalidRequest(fmt.Sprintf("method names starting with %q are reserved", ReservedPrefix))
	}
	if r.Params != nil && !isStructured(r.Params) {
		return NewInvalidRequest("params must be an array or an object")
	}
	if r.ID != nil && !IsValidID(r.ID) {
		return NewInvalidRequest("id must be a string, a number, or null")
	}
	return nil
}

// Parse decodes a single JSON-RPC request from raw frame text.
//
// Text that is not valid JSON yields a parse error (-32700). Valid JSON
// that cannot be read as a request object yields an invalid request
// error (-32600). Parse does not apply Validate.
func Parse(data []byte) (*Request, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewParseError("invalid JSON: " + err.Error())
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, NewInvalidRequest("batch requests are not supported")
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewInvalidRequest(err.Error())
	}
	return &req, nil
}

// ExtractID makes a best-effort attempt at recovering the id member of a
// frame that failed validation. It returns nil when no usable id exists.
func ExtractID(data []byte) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	id, ok := fields["id"]
	if !ok || !IsValidID(id) {
		return nil
	}
	return id
}

// IsValidID reports whether raw is a string, a number, or null.
func IsValidID(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch c := trimmed[0]; {
	case c == '"':
		var s string
		return json.Unmarshal(trimmed, &s) == nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		return json.Unmarshal(trimmed, &n) == nil
	case c == 'n':
		return bytes.Equal(trimmed, []byte("null"))
	}
	return false
}

func isStructured(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

// Reply is a message sent back to the client in answer to a request.
// It is implemented by *Response and *ErrorResponse.
type Reply interface {
	// ReplyID returns the echoed request id. Nil encodes as JSON null.
	ReplyID() json.RawMessage
	// IsError reports whether the reply is an error response.
	IsError() bool
}

// Response represents a successful JSON-RPC 2.0 response.
// Result is always emitted, even when it is null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result"`
	ID      json.RawMessage `json:"id"`
}

// NewResponse creates a successful response.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		Result:  result,
		ID:      id,
	}
}

// ReplyID implements Reply.
func (r *Response) ReplyID() json.RawMessage { return r.ID }

// IsError implements Reply.
func (r *Response) IsError() bool { return false }

// ErrorResponse represents a JSON-RPC 2.0 error response.
// A nil ID is emitted as `"id": null`.
type ErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, err *Error) *ErrorResponse {
	return &ErrorResponse{
		JSONRPC: JSONRPCVersion,
		Error:   err,
		ID:      id,
	}
}

// ReplyID implements Reply.
func (r *ErrorResponse) ReplyID() json.RawMessage { return r.ID }

// IsError implements Reply.
func (r *ErrorResponse) IsError() bool { return true }

// Notification represents a server-initiated JSON-RPC notification.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a notification, encoding params when non-nil.
func NewNotification(method string, params any) (*Notification, error) {
	n := &Notification{JSONRPC: JSONRPCVersion, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		n.Params = data
	}
	return n, nil
}

// Message is any decoded inbound frame as seen by a client: a success
// response, an error response, or a server notification.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// IsNotification reports whether the frame is a server notification.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}
