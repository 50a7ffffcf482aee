package server

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// PingResult is the result of the ping method.
type PingResult struct {
	Pong      bool  `json:"pong"`
	Timestamp int64 `json:"timestamp"`
}

// ServerInfo is the result of the getServerInfo method.
type ServerInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	JSONRPCVersion string   `json:"jsonrpc_version"`
	Capabilities   []string `json:"capabilities"`
}

// AddParamsSchema constrains add params to a pair of numbers.
const AddParamsSchema = `{
	"type": "array",
	"items": {"type": "number"},
	"minItems": 2,
	"maxItems": 2
}`

func (s *Server) registerBuiltins() {
	builtins := []struct {
		name        string
		description string
		handler     Handler
	}{
		{protocol.MethodPing, "Liveness check returning the server time", HandlerFunc(s.ping)},
		{protocol.MethodEcho, "Returns params unchanged", HandlerFunc(echo)},
		{protocol.MethodAdd, "Sums a pair of numbers given as [a, b]", mustWithSchema(AddParamsSchema, HandlerFunc(add))},
		{protocol.MethodGetServerInfo, "Server name, version and registered methods", HandlerFunc(s.serverInfo)},
	}
	for _, b := range builtins {
		if err := s.register(b.name, method{handler: b.handler, description: b.description}); err != nil {
			panic(err)
		}
	}
}

func mustWithSchema(raw string, h Handler) Handler {
	wrapped, err := WithSchema([]byte(raw), h)
	if err != nil {
		panic(err)
	}
	return wrapped
}

func (s *Server) ping(context.Context, json.RawMessage) (any, error) {
	return PingResult{Pong: true, Timestamp: s.now().Unix()}, nil
}

func echo(_ context.Context, params json.RawMessage) (any, error) {
	if params == nil {
		return nil, nil
	}
	return params, nil
}

func add(_ context.Context, params json.RawMessage) (any, error) {
	var args []*float64
	if err := json.Unmarshal(params, &args); err != nil || len(args) != 2 || args[0] == nil || args[1] == nil {
		return nil, protocol.NewInvalidParams("add expects params [a, b] with two numbers")
	}
	return *args[0] + *args[1], nil
}

func (s *Server) serverInfo(context.Context, json.RawMessage) (any, error) {
	return ServerInfo{
		Name:           s.info.Name,
		Version:        s.info.Version,
		JSONRPCVersion: protocol.JSONRPCVersion,
		Capabilities:   s.Methods(),
	}, nil
}
