package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// State is the lifecycle phase of a connection.
type State int32

// Connection states. A session moves Open -> Processing -> Open for each
// frame, and to Closing once a close frame is seen or the server shuts
// down. Closed is terminal.
const (
	StateOpen State = iota
	StateProcessing
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateProcessing:
		return "processing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrSessionClosed is returned when writing to a closed session.
var ErrSessionClosed = errors.New("transport: session closed")

// Session is one WebSocket connection. Writes are serialized; control
// frames bypass the write lock as gorilla allows.
type Session struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	writeWait  time.Duration

	state   atomic.Int32
	writeMu sync.Mutex
}

func newSession(id string, conn *websocket.Conn, writeWait time.Duration) *Session {
	return &Session{
		id:         id,
		remoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		writeWait:  writeWait,
	}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// beginFrame moves Open to Processing. It fails once the session is closing.
func (s *Session) beginFrame() bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(StateProcessing))
}

func (s *Session) endFrame() {
	s.state.CompareAndSwap(int32(StateProcessing), int32(StateOpen))
}

// markClosing moves any non-terminal state to Closing.
func (s *Session) markClosing() {
	for {
		cur := s.state.Load()
		if State(cur) >= StateClosing {
			return
		}
		if s.state.CompareAndSwap(cur, int32(StateClosing)) {
			return
		}
	}
}

func (s *Session) markClosed() {
	s.state.Store(int32(StateClosed))
}

func (s *Session) deadline() time.Time {
	if s.writeWait <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.writeWait)
}

// WriteText sends one text frame.
func (s *Session) WriteText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	_ = s.conn.SetWriteDeadline(s.deadline())
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// WriteReply encodes and sends a reply.
func (s *Session) WriteReply(reply protocol.Reply) error {
	data, err := Encode(reply)
	if err != nil {
		return err
	}
	return s.WriteText(data)
}

// Notify sends a server-initiated notification to this connection.
func (s *Session) Notify(_ context.Context, method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.WriteText(data)
}

func (s *Session) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, s.deadline())
}

// close sends a close frame and moves the session to Closing. The read
// loop finishes the teardown once the peer answers or the read deadline
// passes.
func (s *Session) close(code int, reason string) {
	s.markClosing()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.deadline())
	_ = s.conn.SetReadDeadline(time.Now().Add(closeGrace))
}

const closeGrace = time.Second
