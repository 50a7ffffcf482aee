// Package client provides a JSON-RPC 2.0 client for wsrpc servers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// ErrClosed is returned for calls made after the transport has closed.
var ErrClosed = errors.New("client: transport closed")

// Transport carries requests to a server.
type Transport interface {
	// Send writes req. For requests carrying an id it waits for the
	// matching reply; for notifications it returns a nil message.
	Send(ctx context.Context, req *protocol.Request) (*protocol.Message, error)
	// Close closes the transport connection.
	Close() error
}

// Client issues JSON-RPC calls over a Transport.
type Client struct {
	transport Transport
	opts      clientOptions
	requestID atomic.Int64
}

// PingResult is the reply to ping.
type PingResult struct {
	Pong      bool  `json:"pong"`
	Timestamp int64 `json:"timestamp"`
}

// Time returns the server timestamp as a time.Time.
func (p PingResult) Time() time.Time {
	return time.Unix(p.Timestamp, 0)
}

// ServerInfo is the reply to getServerInfo.
type ServerInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	JSONRPCVersion string   `json:"jsonrpc_version"`
	Capabilities   []string `json:"capabilities"`
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
}

// WithTimeout sets the default timeout for calls. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// New creates a client over the given transport.
func New(transport Transport, opts ...Option) *Client {
	options := clientOptions{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&options)
	}
	return &Client{transport: transport, opts: options}
}

// Call invokes method and decodes the result into result when it is
// non-nil. A JSON-RPC error reply is returned as a *protocol.Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := strconv.FormatInt(c.requestID.Add(1), 10)
	req, err := newRequest(method, params, json.RawMessage(id))
	if err != nil {
		return err
	}

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	msg, err := c.transport.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if msg.Error != nil {
		return msg.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(msg.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// Notify sends a notification. No reply is expected.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := newRequest(method, params, nil)
	if err != nil {
		return err
	}
	if _, err := c.transport.Send(ctx, req); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// Ping calls the ping method.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var res PingResult
	if err := c.Call(ctx, protocol.MethodPing, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Echo calls echo and decodes the returned params into result.
func (c *Client) Echo(ctx context.Context, params, result any) error {
	return c.Call(ctx, protocol.MethodEcho, params, result)
}

// Add calls add with [a, b].
func (c *Client) Add(ctx context.Context, a, b float64) (float64, error) {
	var sum float64
	if err := c.Call(ctx, protocol.MethodAdd, []float64{a, b}, &sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// ServerInfo calls getServerInfo.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.Call(ctx, protocol.MethodGetServerInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func newRequest(method string, params any, id json.RawMessage) (*protocol.Request, error) {
	req := &protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method, ID: id}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}
