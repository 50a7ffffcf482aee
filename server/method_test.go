package server

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

type greetParams struct {
	Name  string `json:"name" jsonschema:"required,minLength=1"`
	Times int    `json:"times" jsonschema:"minimum=1,maximum=3"`
}

func TestMethodBuilder_Signatures(t *testing.T) {
	tests := []struct {
		name    string
		fn      any
		wantErr bool
	}{
		{"input only", func(p greetParams) (string, error) { return p.Name, nil }, false},
		{"with context", func(ctx context.Context, p greetParams) (string, error) { return p.Name, nil }, false},
		{"not a function", "nope", true},
		{"nil", nil, true},
		{"no params", func() (string, error) { return "", nil }, true},
		{"first not context", func(a, b int) (int, error) { return 0, nil }, true},
		{"single return", func(p greetParams) string { return "" }, true},
		{"second not error", func(p greetParams) (string, string) { return "", "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(Info{})
			err := srv.Method("m").Handler(tt.fn).Err()
			if (err != nil) != tt.wantErr {
				t.Errorf("Err() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMethodBuilder_Invoke(t *testing.T) {
	srv := New(Info{})
	err := srv.Method("greet").
		Description("Greets someone").
		ValidateParams().
		Handler(func(ctx context.Context, p greetParams) (map[string]any, error) {
			if p.Name == "error" {
				return nil, protocol.NewServerError("refused")
			}
			return map[string]any{"greeting": "hello " + p.Name, "times": p.Times}, nil
		}).Err()
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("decodes params", func(t *testing.T) {
		got := result(t, srv.Dispatch(context.Background(), request("greet", `{"name":"ada","times":2}`, "1")))
		m := got.(map[string]any)
		if m["greeting"] != "hello ada" || m["times"] != 2 {
			t.Errorf("result = %v", m)
		}
	})

	t.Run("validates params", func(t *testing.T) {
		for _, params := range []string{`{}`, `{"name":""}`, `{"name":"x","times":9}`, `[1]`, ``} {
			reply := srv.Dispatch(context.Background(), request("greet", params, "1"))
			if got := errorCode(t, reply); got != protocol.CodeInvalidParams {
				t.Errorf("greet %q code = %d, want %d", params, got, protocol.CodeInvalidParams)
			}
		}
	})

	t.Run("propagates handler error", func(t *testing.T) {
		reply := srv.Dispatch(context.Background(), request("greet", `{"name":"error"}`, "1"))
		if got := errorCode(t, reply); got != protocol.CodeServerError {
			t.Errorf("code = %d, want %d", got, protocol.CodeServerError)
		}
	})

	if s := srv.ParamsSchema("greet"); s == nil || s.Properties["name"] == nil {
		t.Errorf("ParamsSchema(greet) = %+v", s)
	}
	if s := srv.ParamsSchema("ping"); s != nil {
		t.Errorf("ParamsSchema(ping) = %+v, want nil", s)
	}
}

func TestMethodBuilder_DecodeErrorWithoutValidation(t *testing.T) {
	srv := New(Info{})
	srv.Method("sum").Handler(func(nums []float64) (float64, error) {
		var total float64
		for _, n := range nums {
			total += n
		}
		return total, nil
	})

	if got := result(t, srv.Dispatch(context.Background(), request("sum", `[1,2,3]`, "1"))); got != 6.0 {
		t.Errorf("sum = %v, want 6", got)
	}
	reply := srv.Dispatch(context.Background(), request("sum", `{"a":1}`, "1"))
	e := reply.(*protocol.ErrorResponse)
	if !errors.Is(e.Error, protocol.NewInvalidParams("")) {
		t.Errorf("error = %v, want invalid params", e.Error)
	}
}

func TestMethodBuilder_ReservedName(t *testing.T) {
	srv := New(Info{})
	if err := srv.Method("rpc.x").Handler(func(s string) (string, error) { return s, nil }).Err(); err == nil {
		t.Error("expected reserved name error")
	}
}
