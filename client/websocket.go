package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// WebSocketTransport speaks JSON-RPC over a WebSocket connection.
// Each request is one text frame; replies may arrive in any order.
type WebSocketTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration

	writeMu sync.Mutex
	pending *pending
	readWG  sync.WaitGroup

	closeOnce sync.Once
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	dialer    *websocket.Dialer
	header    http.Header
	writeWait time.Duration
	onMessage MessageHandler
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) DialOption {
	return func(o *dialOptions) {
		o.dialer = d
	}
}

// WithHeader adds headers to the upgrade request, e.g. Origin.
func WithHeader(h http.Header) DialOption {
	return func(o *dialOptions) {
		o.header = h
	}
}

// WithWriteWait bounds each frame write.
func WithWriteWait(d time.Duration) DialOption {
	return func(o *dialOptions) {
		o.writeWait = d
	}
}

// OnMessage sets the handler for server notifications and unmatched
// replies. It runs on the read goroutine and must not block.
func OnMessage(h MessageHandler) DialOption {
	return func(o *dialOptions) {
		o.onMessage = h
	}
}

// Dial connects to a wsrpc endpoint such as ws://localhost:8765/live.
func Dial(ctx context.Context, url string, opts ...DialOption) (*WebSocketTransport, error) {
	o := dialOptions{dialer: websocket.DefaultDialer, writeWait: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	conn, resp, err := o.dialer.DialContext(ctx, url, o.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &WebSocketTransport{
		conn:      conn,
		writeWait: o.writeWait,
		pending:   newPending(o.onMessage),
	}
	t.readWG.Add(1)
	go t.readLoop()
	return t, nil
}

// DialClient dials url and wraps the connection in a Client.
func DialClient(ctx context.Context, url string, opts ...DialOption) (*Client, error) {
	t, err := Dial(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// Send implements Transport.
func (t *WebSocketTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Message, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if req.IsNotification() {
		return nil, t.write(data)
	}

	ch, err := t.pending.register(req.ID)
	if err != nil {
		return nil, err
	}
	defer t.pending.cancel(req.ID)

	if err := t.write(data); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-ch:
		return msg, nil
	case <-t.pending.done:
		return nil, t.pending.closedErr()
	}
}

// SendRaw writes an arbitrary text frame. Replies to it are routed to
// the OnMessage handler unless a call is waiting on the same id.
func (t *WebSocketTransport) SendRaw(data []byte) error {
	return t.write(data)
}

// Done is closed once the connection has ended.
func (t *WebSocketTransport) Done() <-chan struct{} {
	return t.pending.done
}

// Err returns why the connection ended, or nil while it is open.
func (t *WebSocketTransport) Err() error {
	return t.pending.closedErr()
}

// Close sends a normal close frame and releases the connection.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait))

		select {
		case <-t.pending.done:
		case <-time.After(time.Second):
		}
		err = t.conn.Close()
		t.readWG.Wait()
		t.pending.fail(ErrClosed)
	})
	return err
}

func (t *WebSocketTransport) write(data []byte) error {
	if err := t.pending.closedErr(); err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) readLoop() {
	defer t.readWG.Done()
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			t.pending.fail(err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		t.pending.deliver(data)
	}
}
