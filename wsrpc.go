// Package wsrpc provides a JSON-RPC 2.0 server that speaks over WebSocket.
//
// A Server is a concurrent method registry with a dispatcher. Transports
// turn inbound text frames into dispatched calls and write replies back on
// the same connection:
//
//	srv := wsrpc.NewServer(wsrpc.ServerInfo{Name: "calc", Version: "1.0.0"},
//	    wsrpc.WithMiddleware(wsrpc.DefaultMiddleware(logger)...),
//	)
//
//	type MulParams struct {
//	    A float64 `json:"a" jsonschema:"required"`
//	    B float64 `json:"b" jsonschema:"required"`
//	}
//
//	srv.Method("mul").
//	    Description("Multiplies a and b").
//	    ValidateParams().
//	    Handler(func(ctx context.Context, p MulParams) (float64, error) {
//	        return p.A * p.B, nil
//	    })
//
//	wsrpc.ServeWebSocket(ctx, srv, "127.0.0.1:3000")
//
// Every server starts with the built-in methods ping, echo, add and
// getServerInfo.
package wsrpc

import (
	"context"
	"time"

	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/middleware"
	"github.com/felixgeelhaar/wsrpc/protocol"
	"github.com/felixgeelhaar/wsrpc/server"
	"github.com/felixgeelhaar/wsrpc/transport"
)

// ServerInfo identifies the server to clients.
type ServerInfo = server.Info

// Server is the method registry and dispatcher.
type Server = server.Server

// Option configures a Server.
type Option = server.Option

// Handler is a registered method implementation.
type Handler = server.Handler

// HandlerFunc adapts a function to Handler.
type HandlerFunc = server.HandlerFunc

// Error is a JSON-RPC error object; handlers return it to choose the code.
type Error = protocol.Error

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = logging.Logger
type LogField = logging.Field

// WebSocketOption configures the WebSocket transport.
type WebSocketOption = transport.WebSocketOption

// StdioOption configures the stdio transport.
type StdioOption = transport.StdioOption

// Server options.
var (
	WithMiddleware  = server.WithMiddleware
	WithLogger      = server.WithLogger
	WithoutBuiltins = server.WithoutBuiltins
)

// WebSocket transport options.
var (
	WithPath                = transport.WithPath
	WithTransportLogger     = transport.WithLogger
	WithReadLimit           = transport.WithReadLimit
	WithKeepalive           = transport.WithKeepalive
	WithWriteTimeout        = transport.WithWriteTimeout
	WithAllowedOrigins      = transport.WithAllowedOrigins
	WithConnectionRateLimit = transport.WithConnectionRateLimit
	WithShutdownTimeout     = transport.WithShutdownTimeout
)

// Error constructors.
var (
	NewInvalidParams = protocol.NewInvalidParams
	NewServerError   = protocol.NewServerError
	NewError         = protocol.NewError
)

// RateLimit re-exports for convenience.
var (
	RateLimit             = middleware.RateLimit
	RateLimitByMethod     = middleware.RateLimitByMethod
	RateLimitByConnection = middleware.RateLimitByConnection
)

// SizeLimit re-exports for convenience.
var SizeLimit = middleware.SizeLimit

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// NewServer creates a server seeded with the built-in methods.
func NewServer(info ServerInfo, opts ...Option) *Server {
	return server.New(info, opts...)
}

// ServeWebSocket serves srv on addr until ctx is canceled, then drains
// and closes every connection.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...WebSocketOption) error {
	return transport.NewWebSocket(addr, opts...).Serve(ctx, srv)
}

// ServeStdio serves srv over stdin and stdout until EOF or ctx ends.
func ServeStdio(ctx context.Context, srv *Server, opts ...StdioOption) error {
	return transport.NewStdio(opts...).Serve(ctx, srv)
}

// Notify sends a notification to the connection that issued the current
// call. It is meant to be called from inside a handler.
func Notify(ctx context.Context, method string, params any) error {
	return server.Notify(ctx, method, params)
}

// Chain composes middleware; the first runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover converts handler panics into internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// Timeout bounds each invocation.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID attaches a request id to each invocation context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging logs each invocation.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns Recover, RequestID and Logging.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout adds a per-invocation timeout to
// DefaultMiddleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a log field.
func LogF(key string, value any) LogField {
	return logging.F(key, value)
}
