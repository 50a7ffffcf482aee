package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/felixgeelhaar/wsrpc/logging"
)

// etcdClient is the subset of *clientv3.Client used here. Close comes
// from the Lease interface; on a real client it closes the connection.
type etcdClient interface {
	clientv3.KV
	clientv3.Lease
}

// EtcdConfig configures an Etcd announcer.
type EtcdConfig struct {
	Endpoints   []string
	Service     string
	TTL         time.Duration
	DialTimeout time.Duration
	Logger      logging.Logger
}

// Etcd announces instances in etcd under a keepalive lease.
type Etcd struct {
	client  etcdClient
	service string
	ttl     int64
	logger  logging.Logger

	mu      sync.Mutex
	key     string
	lease   clientv3.LeaseID
	stop    context.CancelFunc
	stopped chan struct{}
}

// NewEtcd connects to the configured endpoints.
func NewEtcd(cfg EtcdConfig) (*Etcd, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("discovery: no etcd endpoints")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: connect etcd: %w", err)
	}
	return newEtcd(c, cfg), nil
}

func newEtcd(c etcdClient, cfg EtcdConfig) *Etcd {
	ttl := int64(cfg.TTL / time.Second)
	if ttl <= 0 {
		ttl = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	service := cfg.Service
	if service == "" {
		service = "wsrpc"
	}
	return &Etcd{client: c, service: service, ttl: ttl, logger: logger}
}

// Announce writes inst under a fresh lease and keeps the lease alive
// until Close. Announcing again replaces the previous entry.
func (e *Etcd) Announce(ctx context.Context, inst Instance) error {
	value, err := Encode(inst)
	if err != nil {
		return fmt.Errorf("discovery: encode instance: %w", err)
	}

	lease, err := e.client.Grant(ctx, e.ttl)
	if err != nil {
		return fmt.Errorf("discovery: grant lease: %w", err)
	}

	key := Key(e.service, inst.Addr)
	if _, err := e.client.Put(ctx, key, value, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("discovery: put %s: %w", key, err)
	}

	kaCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ch, err := e.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("discovery: keepalive: %w", err)
	}

	e.mu.Lock()
	prevStop, prevStopped := e.stop, e.stopped
	e.key, e.lease, e.stop = key, lease.ID, cancel
	e.stopped = make(chan struct{})
	stopped := e.stopped
	e.mu.Unlock()

	if prevStop != nil {
		prevStop()
		<-prevStopped
	}

	go e.drainKeepAlive(kaCtx, key, ch, stopped)

	e.logger.Info("instance announced",
		logging.F("key", key),
		logging.F("ttl_secs", e.ttl),
	)
	return nil
}

func (e *Etcd) drainKeepAlive(ctx context.Context, key string, ch <-chan *clientv3.LeaseKeepAliveResponse, stopped chan struct{}) {
	defer close(stopped)
	for range ch {
	}
	if ctx.Err() == nil {
		e.logger.Warn("announcement lease lost", logging.F("key", key))
	}
}

// Close stops the keepalive and revokes the lease, which removes the
// announced key.
func (e *Etcd) Close(ctx context.Context) error {
	e.mu.Lock()
	stop, stopped, lease, key := e.stop, e.stopped, e.lease, e.key
	e.stop, e.stopped, e.lease, e.key = nil, nil, 0, ""
	e.mu.Unlock()

	var errs []error
	if stop != nil {
		stop()
		<-stopped
		if _, err := e.client.Revoke(ctx, lease); err != nil {
			errs = append(errs, fmt.Errorf("discovery: revoke lease: %w", err))
		} else {
			e.logger.Info("instance withdrawn", logging.F("key", key))
		}
	}
	if err := e.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Instances lists every announced instance of the service. Malformed
// entries are skipped.
func (e *Etcd) Instances(ctx context.Context) ([]Instance, error) {
	resp, err := e.client.Get(ctx, Prefix(e.service), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("discovery: list: %w", err)
	}
	out := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		inst, err := Decode(kv.Value)
		if err != nil {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}
