// Package middleware provides call middleware for the JSON-RPC dispatcher.
//
// Each middleware wraps the next handler in the chain and sees every call
// after it has been validated and before the method handler runs,
// including calls to unknown methods:
//
//	srv := server.New(info,
//	    server.WithMiddleware(
//	        middleware.Recover(),
//	        middleware.RequestID(),
//	        middleware.Timeout(30*time.Second),
//	        middleware.Logging(logger),
//	    ),
//	)
//
// Available middleware:
//
//   - Recover: converts panics into internal errors
//   - RequestID: injects a unique request ID into the context
//   - Timeout: enforces a per-call deadline
//   - Logging: logs each call with its duration
//   - RateLimit: token-bucket limiting, globally, per method or per connection
//   - SizeLimit: rejects oversized params
//   - OTel: OpenTelemetry spans and metrics
package middleware
