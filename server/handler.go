package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/wsrpc/protocol"
	"github.com/felixgeelhaar/wsrpc/schema"
)

// Handler is a registered method implementation. Params is the raw
// params member, nil when absent. A returned *protocol.Error is sent to
// the client as-is; any other error becomes an internal error.
type Handler interface {
	Invoke(ctx context.Context, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, params json.RawMessage) (any, error) {
	return f(ctx, params)
}

// validatingHandler checks params against a schema before invoking next.
type validatingHandler struct {
	validator *schema.Validator
	next      Handler
}

func (h *validatingHandler) Invoke(ctx context.Context, params json.RawMessage) (any, error) {
	if err := h.validator.Validate(params); err != nil {
		rpcErr := protocol.NewInvalidParams("params do not match schema")
		if verrs, ok := err.(schema.ValidationErrors); ok {
			return nil, rpcErr.WithData(verrs)
		}
		return nil, rpcErr.WithData(err.Error())
	}
	return h.next.Invoke(ctx, params)
}

// WithSchema wraps handler so that params are validated against the
// JSON Schema document raw before each invocation. Violations fail with
// invalid params (-32602) and the violation list as error data.
func WithSchema(raw []byte, handler Handler) (Handler, error) {
	v, err := schema.Compile(raw)
	if err != nil {
		return nil, err
	}
	return &validatingHandler{validator: v, next: handler}, nil
}

// RegisterWithSchema registers handler behind a params schema check.
func (s *Server) RegisterWithSchema(name string, schemaJSON []byte, handler Handler) error {
	h, err := WithSchema(schemaJSON, handler)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}
	return s.Register(name, h)
}
