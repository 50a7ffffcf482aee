package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ShutdownConfig configures graceful shutdown.
type ShutdownConfig struct {
	// Timeout bounds the wait for in-flight frames. Default: 30 seconds.
	Timeout time.Duration

	// DrainDelay postpones draining so load balancers can deregister
	// the instance first. Default: none.
	DrainDelay time.Duration

	OnShutdownStart    func()
	OnDrainStart       func()
	OnShutdownComplete func(err error)
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{Timeout: 30 * time.Second}
}

// ShutdownManager counts in-flight frames and refuses new ones once
// draining has begun.
type ShutdownManager struct {
	config ShutdownConfig

	draining atomic.Bool

	mu       sync.Mutex
	inFlight int64
	idle     chan struct{}
	idleOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
}

// NewShutdownManager creates a shutdown manager.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &ShutdownManager{
		config: config,
		idle:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// IsDraining reports whether new frames are being refused.
func (sm *ShutdownManager) IsDraining() bool {
	return sm.draining.Load()
}

// InFlight returns the number of frames being processed.
func (sm *ShutdownManager) InFlight() int64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.inFlight
}

// TrackRequest registers a frame as in flight. It returns false once
// draining has begun; the caller must then not process the frame.
func (sm *ShutdownManager) TrackRequest() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.draining.Load() {
		return false
	}
	sm.inFlight++
	return true
}

// CompleteRequest marks a tracked frame as finished.
func (sm *ShutdownManager) CompleteRequest() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.inFlight--
	if sm.draining.Load() && sm.inFlight <= 0 {
		sm.signalIdle()
	}
}

func (sm *ShutdownManager) signalIdle() {
	sm.idleOnce.Do(func() { close(sm.idle) })
}

// Shutdown starts draining and waits until no frame is in flight, the
// configured timeout passes, or ctx ends. It returns the context error
// when frames were still in flight.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.config.OnShutdownStart != nil {
		sm.config.OnShutdownStart()
	}

	if sm.config.DrainDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sm.config.DrainDelay):
		}
	}

	sm.mu.Lock()
	sm.draining.Store(true)
	if sm.inFlight <= 0 {
		sm.signalIdle()
	}
	sm.mu.Unlock()

	if sm.config.OnDrainStart != nil {
		sm.config.OnDrainStart()
	}

	waitCtx, cancel := context.WithTimeout(ctx, sm.config.Timeout)
	defer cancel()

	var err error
	select {
	case <-sm.idle:
	case <-waitCtx.Done():
		err = waitCtx.Err()
	}

	sm.doneOnce.Do(func() { close(sm.done) })
	if sm.config.OnShutdownComplete != nil {
		sm.config.OnShutdownComplete(err)
	}
	return err
}

// Done is closed when Shutdown has returned.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}
