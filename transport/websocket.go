package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/protocol"
	"github.com/felixgeelhaar/wsrpc/server"
)

// Defaults for the WebSocket transport.
const (
	DefaultPath       = "/live"
	DefaultReadLimit  = 2 << 20
	DefaultPongWait   = 60 * time.Second
	DefaultWriteWait  = 10 * time.Second
	defaultPingPeriod = DefaultPongWait * 9 / 10
)

// WebSocket serves JSON-RPC over WebSocket. Each connection is handled
// by its own goroutine that reads a frame, processes it to completion,
// and writes the reply before reading the next frame.
type WebSocket struct {
	addr     string
	path     string
	upgrader websocket.Upgrader
	logger   logging.Logger
	version  string

	readLimit  int64
	pongWait   time.Duration
	pingPeriod time.Duration
	writeWait  time.Duration

	connRate  rate.Limit
	connBurst int

	cors   *CORSConfig
	drain  *ShutdownManager
	drainT time.Duration

	mu       sync.Mutex
	server   *http.Server
	bound    string
	sessions map[*Session]struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithPath sets the URL path that accepts upgrades.
func WithPath(path string) WebSocketOption {
	return func(ws *WebSocket) {
		ws.path = path
	}
}

// WithLogger sets the transport logger.
func WithLogger(l logging.Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = l
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) WebSocketOption {
	return func(ws *WebSocket) {
		ws.version = v
	}
}

// WithReadLimit sets the maximum inbound frame size in bytes. Larger
// frames close the connection with status 1009.
func WithReadLimit(n int64) WebSocketOption {
	return func(ws *WebSocket) {
		ws.readLimit = n
	}
}

// WithKeepalive sets how often the server pings and how long it waits
// for any inbound traffic before giving up on the peer. A zero
// pingPeriod disables pings and read deadlines.
func WithKeepalive(pingPeriod, pongWait time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.pingPeriod = pingPeriod
		ws.pongWait = pongWait
	}
}

// WithWriteTimeout bounds every outbound frame write.
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeWait = d
	}
}

// WithAllowedOrigins restricts upgrades and CORS to the given origins.
// "*" allows every origin.
func WithAllowedOrigins(origins ...string) WebSocketOption {
	return func(ws *WebSocket) {
		ws.upgrader.CheckOrigin = OriginChecker(origins)
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = origins
		ws.cors = &cfg
	}
}

// WithCORS sets the CORS policy of the HTTP endpoints.
func WithCORS(cfg CORSConfig) WebSocketOption {
	return func(ws *WebSocket) {
		ws.cors = &cfg
	}
}

// WithConnectionRateLimit paces inbound frames per connection. Frames
// over the budget wait rather than fail. perSecond <= 0 disables pacing.
func WithConnectionRateLimit(perSecond float64, burst int) WebSocketOption {
	return func(ws *WebSocket) {
		if perSecond <= 0 {
			ws.connRate = 0
			return
		}
		if burst < 1 {
			burst = 1
		}
		ws.connRate = rate.Limit(perSecond)
		ws.connBurst = burst
	}
}

// WithShutdownTimeout bounds how long shutdown waits for in-flight frames.
func WithShutdownTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.drainT = d
	}
}

// NewWebSocket creates a WebSocket transport listening on addr.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		path: DefaultPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     OriginChecker([]string{"*"}),
		},
		logger:     logging.Nop(),
		readLimit:  DefaultReadLimit,
		pongWait:   DefaultPongWait,
		pingPeriod: defaultPingPeriod,
		writeWait:  DefaultWriteWait,
		drainT:     30 * time.Second,
		sessions:   make(map[*Session]struct{}),
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ws)
	}
	ws.drain = NewShutdownManager(ShutdownConfig{Timeout: ws.drainT})
	return ws
}

// Addr returns the bound address once serving, else the configured one.
func (ws *WebSocket) Addr() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.bound != "" {
		return ws.bound
	}
	return ws.addr
}

// Ready is closed once the listener is bound and Addr reports the
// actual address.
func (ws *WebSocket) Ready() <-chan struct{} { return ws.ready }

// Path returns the upgrade path.
func (ws *WebSocket) Path() string { return ws.path }

// Sessions returns the number of open connections.
func (ws *WebSocket) Sessions() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.sessions)
}

// Handler returns the HTTP handler serving the upgrade path and /health.
// Values in ctx reach every handler invocation; its cancellation does not.
func (ws *WebSocket) Handler(ctx context.Context, h Handler) http.Handler {
	base := context.WithoutCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, func(w http.ResponseWriter, r *http.Request) {
		ws.serveConn(base, w, r, h)
	})
	mux.Handle(HealthPath, HealthHandler(ws.version, ws))

	if ws.cors != nil {
		return CORSHandler(*ws.cors, mux)
	}
	return mux
}

// Serve listens on the configured address and serves until ctx is canceled.
func (ws *WebSocket) Serve(ctx context.Context, h Handler) error {
	ln, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", ws.addr, err)
	}
	return ws.ServeListener(ctx, ln, h)
}

// ServeListener serves on ln until ctx is canceled, then shuts down gracefully.
func (ws *WebSocket) ServeListener(ctx context.Context, ln net.Listener, h Handler) error {
	srv := &http.Server{
		Handler:           ws.Handler(ctx, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ws.mu.Lock()
	ws.server = srv
	ws.bound = ln.Addr().String()
	ws.mu.Unlock()
	ws.readyOnce.Do(func() { close(ws.ready) })

	ws.logger.Info("websocket transport listening",
		logging.F("addr", ws.bound),
		logging.F("path", ws.path),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ws.drainT+closeGrace)
		defer cancel()
		return ws.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting connections and frames, waits for in-flight
// frames to finish, then closes every session with status 1001.
func (ws *WebSocket) Shutdown(ctx context.Context) error {
	err := ws.drain.Shutdown(ctx)
	if err != nil {
		ws.logger.Warn("shutdown drain incomplete",
			logging.F("in_flight", ws.drain.InFlight()),
			logging.Err(err),
		)
	}

	ws.mu.Lock()
	srv := ws.server
	sessions := make([]*Session, 0, len(ws.sessions))
	for s := range ws.sessions {
		sessions = append(sessions, s)
	}
	ws.mu.Unlock()

	for _, s := range sessions {
		s.close(websocket.CloseGoingAway, "server shutting down")
	}

	if srv != nil {
		if serr := srv.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// Draining reports whether shutdown has begun.
func (ws *WebSocket) Draining() bool { return ws.drain.IsDraining() }

func (ws *WebSocket) serveConn(base context.Context, w http.ResponseWriter, r *http.Request, h Handler) {
	if ws.drain.IsDraining() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed",
			logging.F("remote_addr", r.RemoteAddr),
			logging.Err(err),
		)
		return
	}

	sess := newSession(uuid.NewString(), conn, ws.writeWait)
	log := ws.logger.With(logging.F("conn_id", sess.ID()))

	ws.mu.Lock()
	ws.sessions[sess] = struct{}{}
	ws.mu.Unlock()

	log.Info("connection opened", logging.F("remote_addr", sess.RemoteAddr()))

	ctx, cancel := context.WithCancel(base)
	stopPing := make(chan struct{})
	defer func() {
		close(stopPing)
		cancel()
		sess.markClosed()
		_ = conn.Close()

		ws.mu.Lock()
		delete(ws.sessions, sess)
		ws.mu.Unlock()

		log.Info("connection closed")
	}()

	ws.configureConn(sess)
	if ws.pingPeriod > 0 {
		go ws.keepalive(sess, stopPing, log)
	}

	ctx = protocol.ContextWithRequestMeta(ctx, protocol.RequestMeta{
		protocol.MetaConnectionID: sess.ID(),
		protocol.MetaRemoteAddr:   sess.RemoteAddr(),
		protocol.MetaUserAgent:    r.UserAgent(),
		protocol.MetaOrigin:       r.Header.Get("Origin"),
		protocol.MetaTransport:    "websocket",
	})
	ctx = server.ContextWithNotifier(ctx, sess)

	var limiter *rate.Limiter
	if ws.connRate > 0 {
		limiter = rate.NewLimiter(ws.connRate, ws.connBurst)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			sess.markClosing()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("connection read failed", logging.Err(err))
			}
			return
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		if err := ws.handleFrame(ctx, sess, h, msgType, data, log); err != nil {
			if !errors.Is(err, ErrSessionClosed) {
				log.Warn("connection write failed", logging.Err(err))
			}
			return
		}
	}
}

func (ws *WebSocket) configureConn(sess *Session) {
	conn := sess.conn
	conn.SetReadLimit(ws.readLimit)

	extend := func() {
		if ws.pingPeriod > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		}
	}
	extend()

	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), sess.deadline())
		var netErr net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil
		}
		return err
	})
	conn.SetCloseHandler(func(code int, _ string) error {
		sess.markClosing()
		msg := websocket.FormatCloseMessage(code, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, sess.deadline())
		return nil
	})
}

func (ws *WebSocket) keepalive(sess *Session, stop <-chan struct{}, log logging.Logger) {
	ticker := time.NewTicker(ws.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := sess.ping(); err != nil {
				log.Debug("keepalive ping failed", logging.Err(err))
				return
			}
		}
	}
}

// handleFrame processes one inbound frame. It returns an error only when
// the reply could not be written.
func (ws *WebSocket) handleFrame(ctx context.Context, sess *Session, h Handler, msgType int, data []byte, log logging.Logger) error {
	if !sess.beginFrame() {
		return ErrSessionClosed
	}
	defer sess.endFrame()

	log.Debug("frame received", logging.F("size", len(data)))

	if msgType != websocket.TextMessage {
		log.Warn("binary frame rejected", logging.F("size", len(data)))
		return sess.WriteReply(protocol.NewErrorResponse(nil,
			protocol.NewInvalidRequest("binary frames are not supported")))
	}

	if !ws.drain.TrackRequest() {
		id := protocol.ExtractID(data)
		if id == nil {
			return nil
		}
		return sess.WriteReply(protocol.NewErrorResponse(id,
			protocol.NewServerError("server is shutting down")))
	}
	defer ws.drain.CompleteRequest()

	reply := Process(ctx, h, data)
	if reply == nil {
		return nil
	}
	if rpcErr, ok := isProtocolFailure(reply); ok {
		log.Warn("frame rejected",
			logging.F("code", rpcErr.Code),
			logging.F("reason", rpcErr.Message),
		)
	}
	return sess.WriteReply(reply)
}
