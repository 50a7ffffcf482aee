package wsrpc_test

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/wsrpc"
	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Example registers a typed method and dispatches a request to it.
func Example() {
	srv := wsrpc.NewServer(wsrpc.ServerInfo{Name: "calc", Version: "1.0.0"})

	type MulParams struct {
		A float64 `json:"a" jsonschema:"required"`
		B float64 `json:"b" jsonschema:"required"`
	}

	srv.Method("mul").
		Description("Multiplies a and b").
		ValidateParams().
		Handler(func(ctx context.Context, p MulParams) (float64, error) {
			return p.A * p.B, nil
		})

	req, _ := protocol.Parse([]byte(`{"jsonrpc":"2.0","method":"mul","params":{"a":6,"b":7},"id":1}`))
	out, _ := json.Marshal(srv.Dispatch(context.Background(), req))

	fmt.Println(string(out))
	// Output: {"jsonrpc":"2.0","result":42,"id":1}
}

// ExampleNotify pushes a notification to the caller from inside a handler.
func ExampleNotify() {
	srv := wsrpc.NewServer(wsrpc.ServerInfo{Name: "jobs"})

	srv.MustRegister("start", wsrpc.HandlerFunc(func(ctx context.Context, _ json.RawMessage) (any, error) {
		if err := wsrpc.Notify(ctx, "job.started", map[string]int{"id": 1}); err != nil {
			return nil, err
		}
		return "queued", nil
	}))

	fmt.Println(srv.Methods())
	// Output: [add echo getServerInfo ping start]
}

// ExampleDefaultMiddlewareWithTimeout shows the production middleware stack.
func ExampleDefaultMiddlewareWithTimeout() {
	var logger wsrpc.Logger // = logging.NewZap(nil)

	srv := wsrpc.NewServer(wsrpc.ServerInfo{Name: "server", Version: "1.0.0"},
		wsrpc.WithMiddleware(wsrpc.DefaultMiddlewareWithTimeout(logger, 0)...),
	)

	fmt.Println(len(srv.Methods()))
	// Output: 4
}
