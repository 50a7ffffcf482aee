// Package server implements the JSON-RPC method registry and dispatcher.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/middleware"
	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Info identifies the server to clients.
type Info struct {
	Name    string
	Version string
}

// Option configures a Server.
type Option func(*Server)

// WithMiddleware appends middleware that wraps every dispatched call.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithLogger sets the logger used for notification failures and recovered panics.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithClock sets the time source used by the ping built-in.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithoutBuiltins skips seeding the built-in methods.
func WithoutBuiltins() Option {
	return func(s *Server) {
		s.skipBuiltins = true
	}
}

// method is a registry entry.
type method struct {
	handler     Handler
	description string
}

// Server is the method registry and dispatcher. Lookups run concurrently;
// registration holds the write lock only for the map mutation.
type Server struct {
	mu      sync.RWMutex
	methods map[string]method

	info         Info
	middleware   []middleware.Middleware
	chain        middleware.HandlerFunc
	logger       logging.Logger
	now          func() time.Time
	skipBuiltins bool
}

// New creates a server and seeds the built-in methods.
func New(info Info, opts ...Option) *Server {
	s := &Server{
		methods: make(map[string]method),
		info:    info,
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.chain = middleware.Chain(s.middleware...)(s.invoke)

	if !s.skipBuiltins {
		s.registerBuiltins()
	}
	return s
}

// Info returns the server identity.
func (s *Server) Info() Info {
	return s.info
}

// Register adds handler under name. Registering an existing name replaces
// the previous handler.
func (s *Server) Register(name string, handler Handler) error {
	return s.register(name, method{handler: handler})
}

// RegisterFunc is Register for a plain function.
func (s *Server) RegisterFunc(name string, fn HandlerFunc) error {
	return s.Register(name, fn)
}

// MustRegister is Register that panics on error.
func (s *Server) MustRegister(name string, handler Handler) {
	if err := s.Register(name, handler); err != nil {
		panic(err)
	}
}

func (s *Server) register(name string, m method) error {
	if err := checkName(name); err != nil {
		return err
	}
	if m.handler == nil {
		return fmt.Errorf("register %q: nil handler", name)
	}

	s.mu.Lock()
	s.methods[name] = m
	s.mu.Unlock()
	return nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("method name cannot be empty")
	}
	if strings.HasPrefix(name, protocol.ReservedPrefix) {
		return fmt.Errorf("method name %q uses reserved prefix %q", name, protocol.ReservedPrefix)
	}
	return nil
}

// Lookup returns the handler registered under name.
func (s *Server) Lookup(name string) (Handler, bool) {
	s.mu.RLock()
	m, ok := s.methods[name]
	s.mu.RUnlock()
	return m.handler, ok
}

// Methods returns a sorted snapshot of the registered method names.
func (s *Server) Methods() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// MethodInfo describes a registered method.
type MethodInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Describe returns name and description of every registered method, sorted by name.
func (s *Server) Describe() []MethodInfo {
	s.mu.RLock()
	infos := make([]MethodInfo, 0, len(s.methods))
	for name, m := range s.methods {
		infos = append(infos, MethodInfo{Name: name, Description: m.description})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
