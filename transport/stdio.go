package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/protocol"
	"github.com/felixgeelhaar/wsrpc/server"
)

// Stdio serves newline-delimited JSON-RPC over stdin and stdout.
// Each line is one frame; replies are written one per line.
type Stdio struct {
	in      io.Reader
	out     io.Writer
	logger  logging.Logger
	maxLine int

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets the input reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets the output writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStdioLogger sets the logger.
func WithStdioLogger(l logging.Logger) StdioOption {
	return func(s *Stdio) {
		s.logger = l
	}
}

// WithMaxLineSize sets the longest accepted line in bytes.
func WithMaxLineSize(n int) StdioOption {
	return func(s *Stdio) {
		s.maxLine = n
	}
}

// NewStdio creates a stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:      os.Stdin,
		out:     os.Stdout,
		logger:  logging.Nop(),
		maxLine: DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns "stdio".
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve processes lines until EOF or ctx is canceled.
func (s *Stdio) Serve(ctx context.Context, h Handler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLine)), s.maxLine)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	ctx = protocol.ContextWithRequestMeta(ctx, protocol.RequestMeta{
		protocol.MetaConnectionID: "stdio",
		protocol.MetaTransport:    "stdio",
	})
	ctx = server.ContextWithNotifier(ctx, s)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := s.handleLine(ctx, h, line); err != nil {
				return err
			}
		}
	}
}

func (s *Stdio) handleLine(ctx context.Context, h Handler, line []byte) error {
	reply := Process(ctx, h, line)
	if reply == nil {
		return nil
	}
	if rpcErr, ok := isProtocolFailure(reply); ok {
		s.logger.Warn("frame rejected",
			logging.F("code", rpcErr.Code),
			logging.F("reason", rpcErr.Message),
		)
	}
	data, err := Encode(reply)
	if err != nil {
		return err
	}
	return s.writeLine(data)
}

// Notify writes a server-initiated notification line.
func (s *Stdio) Notify(_ context.Context, method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.writeLine(data)
}

func (s *Stdio) writeLine(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}
