package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Logger is the structured logger used by middleware.
type Logger = logging.Logger

// Field is a structured log field.
type Field = logging.Field

// F creates a new Field with the given key and value.
func F(key string, value any) Field { return logging.F(key, value) }

// Logging returns middleware that logs each call with its duration.
// Successful calls are logged at debug level, failures at warn level
// for protocol errors and error level for everything else. A nil
// logger discards output.
func Logging(logger Logger) Middleware {
	if logger == nil {
		logger = NopLogger()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (any, error) {
			start := time.Now()
			result, err := next(ctx, req)

			fields := []Field{
				F("method", req.Method),
				F("duration", time.Since(start)),
				F("notification", req.IsNotification()),
			}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, F("request_id", requestID))
			}
			if connID := protocol.GetRequestMeta(ctx, protocol.MetaConnectionID); connID != "" {
				fields = append(fields, F("conn_id", connID))
			}

			if err == nil {
				logger.Debug("request completed", fields...)
				return result, nil
			}

			var rpcErr *protocol.Error
			if errors.As(err, &rpcErr) {
				fields = append(fields, F("code", rpcErr.Code), F("error", rpcErr.Message))
				logger.Warn("request failed", fields...)
			} else {
				fields = append(fields, F("error", err.Error()))
				logger.Error("request failed", fields...)
			}
			return result, err
		}
	}
}

// NopLogger returns a logger that discards all entries.
func NopLogger() Logger { return logging.Nop() }
