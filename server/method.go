package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/felixgeelhaar/wsrpc/protocol"
	"github.com/felixgeelhaar/wsrpc/schema"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// MethodBuilder registers a method whose params decode into a Go value.
type MethodBuilder struct {
	server      *Server
	name        string
	description string
	validate    bool
	err         error
}

// Method starts building a typed method with the given name.
func (s *Server) Method(name string) *MethodBuilder {
	return &MethodBuilder{server: s, name: name}
}

// Description sets the method description.
func (b *MethodBuilder) Description(desc string) *MethodBuilder {
	b.description = desc
	return b
}

// ValidateParams checks params against the schema generated from the
// handler's input type before decoding.
func (b *MethodBuilder) ValidateParams() *MethodBuilder {
	b.validate = true
	return b
}

// Handler sets the handler and registers the method. fn must be one of:
//   - func(in T) (R, error)
//   - func(ctx context.Context, in T) (R, error)
func (b *MethodBuilder) Handler(fn any) *MethodBuilder {
	if b.err != nil {
		return b
	}

	h, err := newTypedHandler(fn)
	if err != nil {
		b.err = fmt.Errorf("method %q: %w", b.name, err)
		return b
	}
	if b.validate {
		v, err := h.schema.Compile()
		if err != nil {
			b.err = fmt.Errorf("method %q: %w", b.name, err)
			return b
		}
		h.validator = v
	}

	b.err = b.server.register(b.name, method{handler: h, description: b.description})
	return b
}

// Err returns the first error encountered while building.
func (b *MethodBuilder) Err() error {
	return b.err
}

// typedHandler calls a reflected function with decoded params.
type typedHandler struct {
	fn         reflect.Value
	inType     reflect.Type
	hasContext bool
	schema     *schema.Schema
	validator  *schema.Validator
}

func newTypedHandler(fn any) (*typedHandler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler is nil")
	}
	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %s", fnType.Kind())
	}

	h := &typedHandler{fn: reflect.ValueOf(fn)}

	switch fnType.NumIn() {
	case 1:
		h.inType = fnType.In(0)
	case 2:
		if fnType.In(0) != contextType {
			return nil, fmt.Errorf("first parameter must be context.Context when using 2 parameters")
		}
		h.hasContext = true
		h.inType = fnType.In(1)
	default:
		return nil, fmt.Errorf("handler must have 1 or 2 parameters, got %d", fnType.NumIn())
	}

	if fnType.NumOut() != 2 || !fnType.Out(1).Implements(errorType) {
		return nil, fmt.Errorf("handler must return (result, error)")
	}

	s, err := schema.GenerateFromType(h.inType)
	if err != nil {
		return nil, fmt.Errorf("generate params schema: %w", err)
	}
	h.schema = s
	return h, nil
}

func (h *typedHandler) Invoke(ctx context.Context, params json.RawMessage) (any, error) {
	if len(params) == 0 && h.schema.Type == schema.TypeObject {
		params = json.RawMessage("{}")
	}

	if h.validator != nil {
		if err := h.validator.Validate(params); err != nil {
			return nil, protocol.NewInvalidParams("params do not match schema").WithData(err)
		}
	}

	in := reflect.New(h.inType)
	if len(params) > 0 {
		if err := json.Unmarshal(params, in.Interface()); err != nil {
			return nil, protocol.NewInvalidParams(fmt.Sprintf("invalid params: %v", err))
		}
	}

	args := make([]reflect.Value, 0, 2)
	if h.hasContext {
		args = append(args, reflect.ValueOf(ctx))
	}
	args = append(args, in.Elem())

	out := h.fn.Call(args)
	if errVal := out[1].Interface(); errVal != nil {
		return nil, errVal.(error)
	}
	return out[0].Interface(), nil
}

// ParamsSchema returns the JSON Schema generated for a typed method's
// params, or nil for methods registered with a plain Handler.
func (s *Server) ParamsSchema(name string) *schema.Schema {
	h, ok := s.Lookup(name)
	if !ok {
		return nil
	}
	if th, ok := h.(*typedHandler); ok {
		return th.schema
	}
	return nil
}
