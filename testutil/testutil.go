// Package testutil provides testing utilities for wsrpc servers.
//
// TestClient drives a server in memory, frame by frame, through the same
// processing path the transports use. Server runs a real WebSocket
// endpoint on a loopback listener.
//
// Example usage:
//
//	func TestGreet(t *testing.T) {
//	    srv := server.New(server.Info{Name: "test", Version: "1.0.0"})
//	    srv.MustRegister("greet", server.HandlerFunc(greet))
//
//	    tc := testutil.NewTestClient(t, srv)
//	    msg := tc.Call("greet", map[string]any{"name": "World"})
//	    testutil.AssertResult(t, msg, `"Hello, World"`)
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/wsrpc/client"
	"github.com/felixgeelhaar/wsrpc/protocol"
	"github.com/felixgeelhaar/wsrpc/transport"
)

// TestClient sends frames to a handler without a network connection.
type TestClient struct {
	t       testing.TB
	handler transport.Handler
	ctx     context.Context

	mu    sync.Mutex
	reqID int64
}

// NewTestClient creates an in-memory client for h.
func NewTestClient(t testing.TB, h transport.Handler) *TestClient {
	t.Helper()
	ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{
		protocol.MetaConnectionID: "test",
		protocol.MetaTransport:    "memory",
	})
	return &TestClient{t: t, handler: h, ctx: ctx}
}

func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// SendRaw processes one text frame and returns the decoded reply, or nil
// when the frame produced none.
func (tc *TestClient) SendRaw(frame string) *protocol.Message {
	tc.t.Helper()

	reply := transport.Process(tc.ctx, tc.handler, []byte(frame))
	if reply == nil {
		return nil
	}
	data, err := transport.Encode(reply)
	if err != nil {
		tc.t.Fatalf("encode reply: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		tc.t.Fatalf("decode reply %s: %v", data, err)
	}
	return &msg
}

// Call sends a request with a fresh numeric id.
func (tc *TestClient) Call(method string, params any) *protocol.Message {
	tc.t.Helper()
	return tc.SendRaw(tc.frame(method, params, tc.nextID()))
}

// Notify sends a notification and fails the test if a reply comes back.
func (tc *TestClient) Notify(method string, params any) {
	tc.t.Helper()
	if msg := tc.SendRaw(tc.frame(method, params, nil)); msg != nil {
		tc.t.Errorf("notification %q produced a reply: %+v", method, msg)
	}
}

func (tc *TestClient) frame(method string, params any, id json.RawMessage) string {
	tc.t.Helper()
	req := protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method, ID: id}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			tc.t.Fatalf("marshal params: %v", err)
		}
		req.Params = data
	}
	data, err := json.Marshal(req)
	if err != nil {
		tc.t.Fatalf("marshal request: %v", err)
	}
	return string(data)
}

// Server is a WebSocket endpoint bound to a loopback port for the
// duration of a test.
type Server struct {
	t    testing.TB
	WS   *transport.WebSocket
	HTTP *httptest.Server
	// URL is the ws:// address of the upgrade path.
	URL string

	cancel context.CancelFunc
}

// NewServer serves h over WebSocket. Options are passed to the
// transport; the listen address is ignored.
func NewServer(t testing.TB, h transport.Handler, opts ...transport.WebSocketOption) *Server {
	t.Helper()

	ws := transport.NewWebSocket("127.0.0.1:0", opts...)
	ctx, cancel := context.WithCancel(context.Background())
	hs := httptest.NewServer(ws.Handler(ctx, h))

	s := &Server{
		t:      t,
		WS:     ws,
		HTTP:   hs,
		URL:    "ws" + strings.TrimPrefix(hs.URL, "http") + ws.Path(),
		cancel: cancel,
	}
	t.Cleanup(s.Close)
	return s
}

// Close shuts the transport down and stops the listener.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.WS.Shutdown(ctx)
	s.cancel()
	s.HTTP.Close()
}

// Client dials the server and returns a connected client. The
// connection is closed at test cleanup.
func (s *Server) Client(opts ...client.DialOption) *client.Client {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := client.DialClient(ctx, s.URL, opts...)
	if err != nil {
		s.t.Fatalf("dial %s: %v", s.URL, err)
	}
	s.t.Cleanup(func() { _ = c.Close() })
	return c
}

// Conn dials a raw websocket connection for frame-level assertions.
func (s *Server) Conn(header http.Header) *websocket.Conn {
	s.t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.t.Fatalf("dial %s: %v", s.URL, err)
	}
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// RoundTrip writes frame on conn and reads the next text frame.
func RoundTrip(t testing.TB, conn *websocket.Conn, frame string) *protocol.Message {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return &msg
}

// AssertResult checks that msg is a success reply whose result encodes
// to the given JSON.
func AssertResult(t testing.TB, msg *protocol.Message, wantJSON string) {
	t.Helper()
	if msg == nil {
		t.Fatal("expected a reply, got none")
	}
	if msg.Error != nil {
		t.Fatalf("unexpected error reply: %v", msg.Error)
	}
	if !jsonEqual(msg.Result, []byte(wantJSON)) {
		t.Errorf("result = %s, want %s", msg.Result, wantJSON)
	}
}

// AssertError checks that msg is an error reply with the given code.
func AssertError(t testing.TB, msg *protocol.Message, code int) {
	t.Helper()
	if msg == nil {
		t.Fatal("expected a reply, got none")
	}
	if msg.Error == nil {
		t.Fatalf("expected error %d, got result %s", code, msg.Result)
	}
	if msg.Error.Code != code {
		t.Errorf("error code = %d (%s), want %d", msg.Error.Code, msg.Error.Message, code)
	}
	if len(msg.Result) != 0 {
		t.Errorf("error reply also carries result %s", msg.Result)
	}
}

// AssertID checks the reply id against its JSON encoding.
func AssertID(t testing.TB, msg *protocol.Message, wantJSON string) {
	t.Helper()
	if msg == nil {
		t.Fatal("expected a reply, got none")
	}
	if !jsonEqual(msg.ID, []byte(wantJSON)) {
		t.Errorf("id = %s, want %s", msg.ID, wantJSON)
	}
}

func jsonEqual(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	ea, _ := json.Marshal(va)
	eb, _ := json.Marshal(vb)
	return string(ea) == string(eb)
}
