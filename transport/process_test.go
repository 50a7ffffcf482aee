package transport

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, req *protocol.Request) protocol.Reply {
		if req.IsNotification() {
			return nil
		}
		return protocol.NewResponse(req.ID, req.Method)
	})
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantNil  bool
		wantCode int
		wantID   string
	}{
		{"request", `{"jsonrpc":"2.0","method":"ping","id":1}`, false, 0, `1`},
		{"null id request", `{"jsonrpc":"2.0","method":"ping","id":null}`, false, 0, `null`},
		{"notification", `{"jsonrpc":"2.0","method":"ping"}`, true, 0, ``},
		{"not json", `{not json`, false, protocol.CodeParseError, `null`},
		{"empty", ``, false, protocol.CodeParseError, `null`},
		{"wrong version", `{"jsonrpc":"1.0","method":"ping","id":7}`, false, protocol.CodeInvalidRequest, `7`},
		{"missing version", `{"method":"ping","id":"a"}`, false, protocol.CodeInvalidRequest, `"a"`},
		{"reserved method", `{"jsonrpc":"2.0","method":"rpc.x","id":2}`, false, protocol.CodeInvalidRequest, `2`},
		{"scalar params", `{"jsonrpc":"2.0","method":"add","params":5,"id":3}`, false, protocol.CodeInvalidRequest, `3`},
		{"null params", `{"jsonrpc":"2.0","method":"echo","params":null,"id":5}`, false, 0, `5`},
		{"object id", `{"jsonrpc":"2.0","method":"ping","id":{}}`, false, protocol.CodeInvalidRequest, `null`},
		{"numeric method", `{"jsonrpc":"2.0","method":5,"id":4}`, false, protocol.CodeInvalidRequest, `4`},
		{"batch", `[{"jsonrpc":"2.0","method":"ping","id":1}]`, false, protocol.CodeInvalidRequest, `null`},
		{"scalar frame", `42`, false, protocol.CodeInvalidRequest, `null`},
		{"invalid notification", `{"jsonrpc":"2.0","method":""}`, false, protocol.CodeInvalidRequest, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := Process(context.Background(), echoHandler(), []byte(tt.frame))
			if tt.wantNil {
				if reply != nil {
					t.Fatalf("expected no reply, got %+v", reply)
				}
				return
			}
			if reply == nil {
				t.Fatal("expected a reply")
			}

			data, err := Encode(reply)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var msg protocol.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			if got := string(msg.ID); got != tt.wantID {
				t.Errorf("id = %s, want %s (frame %s)", got, tt.wantID, data)
			}
			if tt.wantCode == 0 {
				if msg.Error != nil {
					t.Errorf("unexpected error %+v", msg.Error)
				}
				return
			}
			if msg.Error == nil || msg.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %d", msg.Error, tt.wantCode)
			}
		})
	}
}

func TestEncode_UnencodableResult(t *testing.T) {
	data, err := Encode(protocol.NewResponse(json.RawMessage(`9`), math.Inf(1)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"jsonrpc":"2.0","error":{"code":-32603,"message":"result could not be encoded"},"id":9}`
	if string(data) != want {
		t.Errorf("Encode = %s, want %s", data, want)
	}
}

func TestEncode_KeepsHTMLCharacters(t *testing.T) {
	data, err := Encode(protocol.NewResponse(json.RawMessage(`1`), json.RawMessage(`["<b>&"]`)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"jsonrpc":"2.0","result":["<b>&"],"id":1}`
	if string(data) != want {
		t.Errorf("Encode = %s, want %s", data, want)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateOpen:       "open",
		StateProcessing: "processing",
		StateClosing:    "closing",
		StateClosed:     "closed",
		State(42):       "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
