// Package transport moves JSON-RPC frames between peers and a Handler.
//
// The WebSocket transport runs one goroutine per connection. That
// goroutine reads a text frame, parses and validates it, dispatches it,
// and writes the reply before it reads the next frame, so replies on a
// connection keep request order. Control frames are answered by the
// websocket layer without touching the JSON-RPC layer. Binary frames are
// answered with an invalid request error and the connection stays open.
//
//	srv := server.New(server.Info{Name: "wsrpc", Version: "1.0.0"})
//	ws := transport.NewWebSocket(":3000",
//	    transport.WithPath("/live"),
//	    transport.WithAllowedOrigins("http://localhost:3000"),
//	)
//	err := ws.Serve(ctx, srv)
//
// Next to the upgrade path the transport serves GET /health.
//
// The Stdio transport reads one frame per line from stdin and writes one
// reply per line to stdout.
//
// Both transports install a server.Notifier in the handler context so
// handlers can push notifications to the calling peer.
package transport
