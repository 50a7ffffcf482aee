package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "simple error message",
			err:  &Error{Code: CodeInternalError, Message: "something went wrong"},
			want: "jsonrpc: something went wrong (code: -32603)",
		},
		{
			name: "parse error",
			err:  &Error{Code: CodeParseError, Message: "invalid JSON"},
			want: "jsonrpc: invalid JSON (code: -32700)",
		},
		{
			name: "nil error",
			err:  nil,
			want: "jsonrpc: <nil>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err1 := NewInternalError("test")
	err2 := NewInternalError("different message")
	err3 := NewInvalidParams("test")

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match with errors.Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match with errors.Is")
	}

	wrapped := fmt.Errorf("lookup: %w", err3)
	var target *Error
	if !errors.As(wrapped, &target) || target.Code != CodeInvalidParams {
		t.Error("errors.As should unwrap to the protocol error")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code int
	}{
		{"parse error", NewParseError("x"), -32700},
		{"invalid request", NewInvalidRequest("x"), -32600},
		{"method not found", NewMethodNotFound("x"), -32601},
		{"invalid params", NewInvalidParams("x"), -32602},
		{"internal error", NewInternalError("x"), -32603},
		{"server error", NewServerError("x"), -32000},
		{"timeout", NewTimeout("x"), CodeTimeout},
		{"rate limited", NewRateLimited("x"), CodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.code)
			}
			if tt.err.Message != "x" {
				t.Errorf("Message = %q, want %q", tt.err.Message, "x")
			}
		})
	}
}

func TestNewError_DefaultMessage(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{CodeParseError, "Parse error"},
		{CodeInvalidRequest, "Invalid Request"},
		{CodeMethodNotFound, "Method not found"},
		{CodeInvalidParams, "Invalid params"},
		{CodeInternalError, "Internal error"},
		{CodeServerError, "Server error"},
		{-32050, "Server error"},
		{1001, "Application error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := NewError(tt.code, "").Message; got != tt.want {
				t.Errorf("Message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsReservedCode(t *testing.T) {
	for _, code := range []int{-32768, -32700, -32603, -32000} {
		if !IsReservedCode(code) {
			t.Errorf("IsReservedCode(%d) = false, want true", code)
		}
	}
	for _, code := range []int{-32769, -31999, 0, 42} {
		if IsReservedCode(code) {
			t.Errorf("IsReservedCode(%d) = true, want false", code)
		}
	}
}

func TestError_WithData(t *testing.T) {
	data := map[string]string{"field": "query", "reason": "required"}
	base := NewInvalidParams("validation failed")
	err := base.WithData(data)

	if base.Data != nil {
		t.Error("WithData must not modify the receiver")
	}

	dataMap, ok := err.Data.(map[string]string)
	if !ok {
		t.Fatalf("Data type = %T, want map[string]string", err.Data)
	}
	if dataMap["field"] != "query" {
		t.Errorf("Data[field] = %q, want %q", dataMap["field"], "query")
	}
}
