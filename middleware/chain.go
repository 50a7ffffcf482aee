package middleware

import (
	"context"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// HandlerFunc is the signature for request handlers. It returns the
// result value on success; the dispatcher encodes it into a response.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (any, error)

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middleware into a single middleware.
// Chain(m1, m2, m3) results in m1 wrapping m2 wrapping m3 wrapping the final handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Stack is a fluent builder for middleware chains.
type Stack struct {
	middlewares []Middleware
}

// Use starts a new stack with the given middleware.
func Use(middlewares ...Middleware) *Stack {
	return &Stack{middlewares: middlewares}
}

// Append adds middleware to the end of the stack.
func (s *Stack) Append(middlewares ...Middleware) *Stack {
	s.middlewares = append(s.middlewares, middlewares...)
	return s
}

// Len returns the number of middleware in the stack.
func (s *Stack) Len() int { return len(s.middlewares) }

// Then wraps handler with every middleware in the stack.
func (s *Stack) Then(handler HandlerFunc) HandlerFunc {
	return Chain(s.middlewares...)(handler)
}

// ThenFunc is Then for a plain function.
func (s *Stack) ThenFunc(fn func(ctx context.Context, req *protocol.Request) (any, error)) HandlerFunc {
	return s.Then(HandlerFunc(fn))
}
