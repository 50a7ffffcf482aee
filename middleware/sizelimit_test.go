package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

func TestSizeLimit(t *testing.T) {
	ok := func(ctx context.Context, req *protocol.Request) (any, error) { return "ok", nil }

	tests := []struct {
		name    string
		params  json.RawMessage
		wantErr bool
	}{
		{"no params", nil, false},
		{"under limit", json.RawMessage(`[1,2]`), false},
		{"at limit", json.RawMessage(`[1,2,3,4]`), false},
		{"over limit", json.RawMessage(`[1,2,3,4,5]`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SizeLimit(9, WithSizeLimitLogger(NopLogger()))(ok)
			_, err := h(context.Background(), &protocol.Request{Method: "add", Params: tt.params})
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var rpcErr *protocol.Error
			if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeInvalidParams {
				t.Errorf("error = %v, want invalid params", err)
			}
		})
	}
}
