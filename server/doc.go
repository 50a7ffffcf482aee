// Package server provides the JSON-RPC 2.0 method registry and dispatcher.
//
// A Server maps method names to handlers. It is created once, shared by
// every connection, and may gain methods at any time:
//
//	srv := server.New(server.Info{Name: "wsrpc", Version: "1.0.0"})
//
//	srv.RegisterFunc("greet", func(ctx context.Context, params json.RawMessage) (any, error) {
//	    return "hello", nil
//	})
//
// Typed methods decode params into a Go value and can validate them
// against a schema generated from that type:
//
//	type GreetParams struct {
//	    Name string `json:"name" jsonschema:"required"`
//	}
//
//	srv.Method("greet").
//	    Description("Greets someone").
//	    ValidateParams().
//	    Handler(func(ctx context.Context, p GreetParams) (string, error) {
//	        return "hello " + p.Name, nil
//	    })
//
// New seeds the built-in methods ping, echo, add, and getServerInfo.
// Dispatch returns nil for notifications and exactly one reply for
// every other request.
package server
