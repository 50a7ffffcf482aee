package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// StdioTransport talks to a wsrpc server running as a subprocess with
// the stdio transport.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	writeMu sync.Mutex
	pending *pending
	readWG  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// StdioOption configures a StdioTransport.
type StdioOption func(*stdioOptions)

type stdioOptions struct {
	env       []string
	onMessage MessageHandler
}

// WithEnv sets the subprocess environment.
func WithEnv(env []string) StdioOption {
	return func(o *stdioOptions) {
		o.env = env
	}
}

// WithStdioMessageHandler sets the handler for notifications and
// unmatched replies.
func WithStdioMessageHandler(h MessageHandler) StdioOption {
	return func(o *stdioOptions) {
		o.onMessage = h
	}
}

// NewStdioTransport starts command and speaks newline-delimited
// JSON-RPC over its stdin and stdout.
func NewStdioTransport(command string, args []string, opts ...StdioOption) (*StdioTransport, error) {
	var o stdioOptions
	for _, opt := range opts {
		opt(&o)
	}

	cmd := exec.Command(command, args...)
	cmd.Env = o.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := &StdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		pending: newPending(o.onMessage),
	}
	t.readWG.Add(1)
	go t.readLoop()
	return t, nil
}

// Send implements Transport.
func (t *StdioTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Message, error) {
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

// Close closes stdin, waits for the subprocess to exit, and kills it
// if it has not.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		_ = t.stdin.Close()
		t.readWG.Wait()
		t.pending.fail(ErrClosed)

		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill() //nolint:errcheck // the process may already have exited
		}
		t.closeErr = t.cmd.Wait()
	})
	return t.closeErr
}

// Stderr returns the subprocess stderr.
func (t *StdioTransport) Stderr() io.Reader {
	return t.stderr
}

func (t *StdioTransport) write(data []byte) error {
	if err := t.pending.closedErr(); err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (t *StdioTransport) readLoop() {
	defer t.readWG.Done()

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		t.pending.deliver(scanner.Bytes())
	}
	t.pending.fail(scanner.Err())
}
