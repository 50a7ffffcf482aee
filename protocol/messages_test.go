package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRequest_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Request
		wantErr bool
	}{
		{
			name:  "valid request with params",
			input: `{"jsonrpc":"2.0","id":1,"method":"add","params":[5,3]}`,
			want: Request{
				JSONRPC: "2.0",
				ID:      json.RawMessage(`1`),
				Method:  "add",
				Params:  json.RawMessage(`[5,3]`),
			},
		},
		{
			name:  "valid request without params",
			input: `{"jsonrpc":"2.0","id":"abc-123","method":"ping"}`,
			want: Request{
				JSONRPC: "2.0",
				ID:      json.RawMessage(`"abc-123"`),
				Method:  "ping",
			},
		},
		{
			name:  "notification (no id)",
			input: `{"jsonrpc":"2.0","method":"echo"}`,
			want: Request{
				JSONRPC: "2.0",
				Method:  "echo",
			},
		},
		{
			name:  "explicit null id is kept",
			input: `{"jsonrpc":"2.0","method":"ping","id":null}`,
			want: Request{
				JSONRPC: "2.0",
				Method:  "ping",
				ID:      json.RawMessage(`null`),
			},
		},
		{
			name:  "null params read as absent",
			input: `{"jsonrpc":"2.0","method":"echo","params":null,"id":2}`,
			want: Request{
				JSONRPC: "2.0",
				Method:  "echo",
				ID:      json.RawMessage(`2`),
			},
		},
		{
			name:    "method is not a string",
			input:   `{"jsonrpc":"2.0","method":7,"id":1}`,
			wantErr: true,
		},
		{
			name:    "jsonrpc is not a string",
			input:   `{"jsonrpc":2.0,"method":"ping","id":1}`,
			wantErr: true,
		},
		{
			name:    "top level null",
			input:   `null`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			input:   `{invalid}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Request
			err := json.Unmarshal([]byte(tt.input), &got)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.JSONRPC != tt.want.JSONRPC {
				t.Errorf("JSONRPC = %q, want %q", got.JSONRPC, tt.want.JSONRPC)
			}
			if got.Method != tt.want.Method {
				t.Errorf("Method = %q, want %q", got.Method, tt.want.Method)
			}
			if string(got.ID) != string(tt.want.ID) {
				t.Errorf("ID = %s, want %s", got.ID, tt.want.ID)
			}
			if string(got.Params) != string(tt.want.Params) {
				t.Errorf("Params = %s, want %s", got.Params, tt.want.Params)
			}
		})
	}
}

func TestRequest_IsNotification(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{
			name: "request with id is not notification",
			req:  Request{ID: json.RawMessage(`1`)},
			want: false,
		},
		{
			name: "request with null id is not notification",
			req:  Request{ID: json.RawMessage(`null`)},
			want: false,
		},
		{
			name: "request without id is notification",
			req:  Request{},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.IsNotification(); got != tt.want {
				t.Errorf("IsNotification() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{JSONRPC: "2.0", Method: "test.method", Params: json.RawMessage(`{"a":1}`), ID: json.RawMessage(`1`)}, false},
		{"valid array params", Request{JSONRPC: "2.0", Method: "add", Params: json.RawMessage(`[1,2]`)}, false},
		{"valid null id", Request{JSONRPC: "2.0", Method: "ping", ID: json.RawMessage(`null`)}, false},
		{"wrong version", Request{JSONRPC: "1.0", Method: "ping", ID: json.RawMessage(`1`)}, true},
		{"missing version", Request{Method: "ping", ID: json.RawMessage(`1`)}, true},
		{"empty method", Request{JSONRPC: "2.0", ID: json.RawMessage(`1`)}, true},
		{"reserved prefix", Request{JSONRPC: "2.0", Method: "rpc.reserved", ID: json.RawMessage(`1`)}, true},
		{"scalar params", Request{JSONRPC: "2.0", Method: "echo", Params: json.RawMessage(`5`)}, true},
		{"raw null params", Request{JSONRPC: "2.0", Method: "echo", Params: json.RawMessage(`null`)}, true},
		{"object id", Request{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`{"a":1}`)}, true},
		{"boolean id", Request{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`true`)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var protoErr *Error
			if !errors.As(err, &protoErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if protoErr.Code != CodeInvalidRequest {
				t.Errorf("Code = %d, want %d", protoErr.Code, CodeInvalidRequest)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode int
	}{
		{"valid request", `{"jsonrpc":"2.0","method":"ping","id":1}`, 0},
		{"truncated json", `{not json`, CodeParseError},
		{"empty frame", ``, CodeParseError},
		{"trailing garbage", `{"jsonrpc":"2.0","method":"ping"} x`, CodeParseError},
		{"batch array", `[{"jsonrpc":"2.0","method":"ping","id":1}]`, CodeInvalidRequest},
		{"scalar", `42`, CodeInvalidRequest},
		{"method number", `{"jsonrpc":"2.0","method":1,"id":1}`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(tt.input))
			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if req.Method != "ping" {
					t.Errorf("Method = %q, want ping", req.Method)
				}
				return
			}
			var protoErr *Error
			if !errors.As(err, &protoErr) {
				t.Fatalf("expected *Error, got %T (%v)", err, err)
			}
			if protoErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", protoErr.Code, tt.wantCode)
			}
		})
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"number id", `{"jsonrpc":"1.0","method":"ping","id":7}`, `7`},
		{"string id", `{"method":"","id":"abc"}`, `"abc"`},
		{"null id", `{"id":null}`, `null`},
		{"object id", `{"id":{"x":1}}`, ``},
		{"no id", `{"jsonrpc":"2.0"}`, ``},
		{"not an object", `[1,2]`, ``},
		{"not json", `{`, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractID([]byte(tt.input)); string(got) != tt.want {
				t.Errorf("ExtractID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReply_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{
			name:  "success response",
			reply: NewResponse(json.RawMessage(`1`), map[string]string{"status": "ok"}),
			want:  `{"jsonrpc":"2.0","result":{"status":"ok"},"id":1}`,
		},
		{
			name:  "null result is emitted",
			reply: NewResponse(json.RawMessage(`"a"`), nil),
			want:  `{"jsonrpc":"2.0","result":null,"id":"a"}`,
		},
		{
			name:  "raw result is preserved",
			reply: NewResponse(json.RawMessage(`2`), json.RawMessage(`{"message":"hi"}`)),
			want:  `{"jsonrpc":"2.0","result":{"message":"hi"},"id":2}`,
		},
		{
			name:  "error response",
			reply: NewErrorResponse(json.RawMessage(`1`), &Error{Code: CodeInternalError, Message: "failed"}),
			want:  `{"jsonrpc":"2.0","error":{"code":-32603,"message":"failed"},"id":1}`,
		},
		{
			name:  "error response with unknown id",
			reply: NewErrorResponse(nil, NewParseError("Parse error")),
			want:  `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.reply)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	id := json.RawMessage(`42`)
	resp := NewResponse(id, map[string]int{"count": 10})

	if resp.JSONRPC != JSONRPCVersion {
		t.Errorf("JSONRPC = %q, want %q", resp.JSONRPC, JSONRPCVersion)
	}
	if string(resp.ReplyID()) != string(id) {
		t.Errorf("ID = %s, want %s", resp.ReplyID(), id)
	}
	if resp.IsError() {
		t.Error("IsError() should be false for success response")
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(json.RawMessage(`42`), NewInternalError("something failed"))

	if !resp.IsError() {
		t.Error("IsError() should be true for error response")
	}
	if resp.Error.Code != CodeInternalError {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, CodeInternalError)
	}
}

func TestNewNotification(t *testing.T) {
	n, err := NewNotification("progress", map[string]int{"done": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := json.Marshal(n)
	want := `{"jsonrpc":"2.0","method":"progress","params":{"done":3}}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}

	var msg Message
	if err := json.Unmarshal(got, &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.IsNotification() {
		t.Error("decoded frame should be a notification")
	}
}

func TestRequestMeta(t *testing.T) {
	ctx := SetRequestMeta(t.Context(), MetaConnectionID, "c1")
	ctx2 := SetRequestMeta(ctx, MetaRemoteAddr, "127.0.0.1:1")

	if got := GetRequestMeta(ctx2, MetaConnectionID); got != "c1" {
		t.Errorf("connection id = %q, want c1", got)
	}
	if got := GetRequestMeta(ctx, MetaRemoteAddr); got != "" {
		t.Errorf("parent context was mutated: remote addr = %q", got)
	}
}
