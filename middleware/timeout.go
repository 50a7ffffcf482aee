package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Timeout returns middleware that enforces a per-request deadline.
// A handler that honors its context returns context.DeadlineExceeded,
// which the dispatcher reports as a timeout error. A non-positive
// duration disables the deadline.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *protocol.Request) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}
