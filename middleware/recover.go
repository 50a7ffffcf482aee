package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// PanicHandler is called with the recovered value when a handler panics.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (any, error)

// Recover returns middleware that converts handler panics into internal errors.
func Recover() Middleware {
	return RecoverWithHandler(defaultPanicHandler)
}

// RecoverWithHandler returns middleware that catches panics and calls handler.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					result, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// RecoverWithLogger is Recover that also logs the panic value.
func RecoverWithLogger(logger Logger) Middleware {
	return RecoverWithHandler(func(ctx context.Context, req *protocol.Request, panicVal any) (any, error) {
		logger.Error("handler panicked",
			F("method", req.Method),
			F("panic", fmt.Sprint(panicVal)),
		)
		return defaultPanicHandler(ctx, req, panicVal)
	})
}

// The panic value is never echoed to the client.
func defaultPanicHandler(_ context.Context, _ *protocol.Request, _ any) (any, error) {
	return nil, protocol.NewInternalError("")
}
