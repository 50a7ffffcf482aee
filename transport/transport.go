// Package transport carries JSON-RPC frames between peers and the dispatcher.
package transport

import (
	"context"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Handler dispatches a validated request and returns its reply, or nil
// for a notification. *server.Server implements Handler.
type Handler interface {
	Dispatch(ctx context.Context, req *protocol.Request) protocol.Reply
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) protocol.Reply

// Dispatch calls f(ctx, req).
func (f HandlerFunc) Dispatch(ctx context.Context, req *protocol.Request) protocol.Reply {
	return f(ctx, req)
}

// Transport is a long-running frame source.
type Transport interface {
	// Serve blocks until ctx is canceled or the transport fails.
	Serve(ctx context.Context, handler Handler) error

	// Addr describes where the transport is reachable.
	Addr() string
}
