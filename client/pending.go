package client

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// MessageHandler receives server notifications and replies that match
// no outstanding call, such as parse errors carrying a null id.
type MessageHandler func(*protocol.Message)

// pending routes replies to the calls waiting on them.
type pending struct {
	mu      sync.Mutex
	waiters map[string]chan *protocol.Message
	err     error
	done    chan struct{}
	onMsg   MessageHandler
}

func newPending(onMsg MessageHandler) *pending {
	return &pending{
		waiters: make(map[string]chan *protocol.Message),
		done:    make(chan struct{}),
		onMsg:   onMsg,
	}
}

func idKey(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(id)
	}
	return buf.String()
}

func (p *pending) register(id json.RawMessage) (chan *protocol.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan *protocol.Message, 1)
	p.waiters[idKey(id)] = ch
	return ch, nil
}

func (p *pending) cancel(id json.RawMessage) {
	p.mu.Lock()
	delete(p.waiters, idKey(id))
	p.mu.Unlock()
}

// deliver decodes one inbound frame and hands it to its waiter.
func (p *pending) deliver(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if !msg.IsNotification() && len(msg.ID) > 0 {
		key := idKey(msg.ID)
		p.mu.Lock()
		ch, ok := p.waiters[key]
		delete(p.waiters, key)
		p.mu.Unlock()
		if ok {
			ch <- &msg
			return
		}
	}

	if p.onMsg != nil {
		p.onMsg(&msg)
	}
}

// fail records the terminal error and releases every waiter.
func (p *pending) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if err == nil {
		err = ErrClosed
	}
	p.err = err
	p.waiters = make(map[string]chan *protocol.Message)
	close(p.done)
}

func (p *pending) closedErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
