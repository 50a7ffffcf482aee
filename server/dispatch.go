package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Dispatch routes a validated request to its handler through the
// middleware chain.
//
// For a notification the handler runs, its outcome is only logged, and
// Dispatch returns nil. For any other request Dispatch returns exactly
// one reply carrying the request id: a *protocol.Response on success or
// a *protocol.ErrorResponse otherwise. Handler panics never escape.
func (s *Server) Dispatch(ctx context.Context, req *protocol.Request) protocol.Reply {
	if req.IsNotification() {
		s.dispatchNotification(ctx, req)
		return nil
	}

	result, err := s.call(ctx, req)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, s.toError(req, err))
	}
	return protocol.NewResponse(req.ID, result)
}

// errHandlerPanicked marks an error produced by a recovered panic, which
// call has already logged.
var errHandlerPanicked = errors.New("handler panicked")

func (s *Server) dispatchNotification(ctx context.Context, req *protocol.Request) {
	if _, err := s.call(ctx, req); err != nil {
		if errors.Is(err, errHandlerPanicked) {
			return
		}
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) && rpcErr != nil && rpcErr.Code == protocol.CodeMethodNotFound {
			s.logger.Debug("notification for unknown method", logging.F("method", req.Method))
			return
		}
		s.logger.Error("notification handler failed",
			logging.F("method", req.Method),
			logging.Err(err),
		)
	}
}

func (s *Server) call(ctx context.Context, req *protocol.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked",
				logging.F("method", req.Method),
				logging.F("panic", fmt.Sprint(r)),
			)
			result, err = nil, fmt.Errorf("%w: %w", errHandlerPanicked, protocol.NewInternalError(""))
		}
	}()
	return s.chain(ctx, req)
}

// invoke is the innermost handler of the middleware chain.
func (s *Server) invoke(ctx context.Context, req *protocol.Request) (any, error) {
	h, ok := s.Lookup(req.Method)
	if !ok {
		return nil, protocol.NewMethodNotFound(fmt.Sprintf("method %q not found", req.Method))
	}
	return h.Invoke(ctx, req.Params)
}

// toError maps a handler error to its wire representation. Details of
// unexpected errors are logged, never sent.
func (s *Server) toError(req *protocol.Request, err error) *protocol.Error {
	var rpcErr *protocol.Error
	switch {
	case errors.As(err, &rpcErr) && rpcErr != nil:
		return rpcErr
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.NewTimeout("request timed out")
	case errors.Is(err, context.Canceled):
		return protocol.NewServerError("request cancelled")
	}

	s.logger.Error("handler failed",
		logging.F("method", req.Method),
		logging.Err(err),
	)
	return protocol.NewInternalError("")
}
