package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/felixgeelhaar/wsrpc/logging"
)

// fakeEtcd keeps keys in memory. Embedded interfaces stay nil; only the
// methods the announcer calls are implemented.
type fakeEtcd struct {
	clientv3.KV
	clientv3.Lease

	mu        sync.Mutex
	nextLease clientv3.LeaseID
	grants    []int64
	kv        map[string]string
	leaseOf   map[string]clientv3.LeaseID
	keepalive map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse
	revoked   []clientv3.LeaseID
	closed    bool
	putErr    error
}

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{
		kv:        make(map[string]string),
		leaseOf:   make(map[string]clientv3.LeaseID),
		keepalive: make(map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse),
	}
}

func (f *fakeEtcd) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLease++
	f.grants = append(f.grants, ttl)
	return &clientv3.LeaseGrantResponse{ID: f.nextLease, TTL: ttl}, nil
}

// Put binds the key to the most recently granted lease, which is the
// order the announcer uses.
func (f *fakeEtcd) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.kv[key] = val
	f.leaseOf[key] = f.nextLease
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) Get(_ context.Context, prefix string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.kv))
	for k := range f.kv {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	resp := &clientv3.GetResponse{}
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.kv[k])})
	}
	return resp, nil
}

func (f *fakeEtcd) KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	ch := make(chan *clientv3.LeaseKeepAliveResponse)
	f.mu.Lock()
	f.keepalive[id] = ch
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeEtcd) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	for k, l := range f.leaseOf {
		if l == id {
			delete(f.kv, k)
			delete(f.leaseOf, k)
		}
	}
	return &clientv3.LeaseRevokeResponse{}, nil
}

func (f *fakeEtcd) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKeyAndEncode(t *testing.T) {
	assert.Equal(t, "/wsrpc/10.0.0.1:3000", Key("wsrpc", "10.0.0.1:3000"))
	assert.Equal(t, "/svc/", Prefix("/svc/"))

	v, err := Encode(Instance{Addr: "a:1", Version: "1.0.0"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"addr":"a:1","version":"1.0.0","methods":[]}`, v)

	inst, err := Decode([]byte(v))
	require.NoError(t, err)
	assert.Equal(t, "a:1", inst.Addr)
}

func TestEtcd_AnnounceAndClose(t *testing.T) {
	fake := newFakeEtcd()
	core, logs := observer.New(zapcore.InfoLevel)
	e := newEtcd(fake, EtcdConfig{Service: "rpc", TTL: 5 * time.Second, Logger: logging.NewZap(zap.New(core))})
	ctx := context.Background()

	inst := Instance{Addr: "127.0.0.1:3000", Version: "0.1.0", Methods: []string{"add", "echo"}}
	require.NoError(t, e.Announce(ctx, inst))

	assert.Equal(t, []int64{5}, fake.grants)
	assert.JSONEq(t, `{"addr":"127.0.0.1:3000","version":"0.1.0","methods":["add","echo"]}`, fake.kv["/rpc/127.0.0.1:3000"])
	assert.Equal(t, clientv3.LeaseID(1), fake.leaseOf["/rpc/127.0.0.1:3000"])

	listed, err := e.Instances(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, inst, listed[0])

	require.NoError(t, e.Close(ctx))
	assert.Equal(t, []clientv3.LeaseID{1}, fake.revoked)
	assert.Empty(t, fake.kv)
	assert.True(t, fake.closed)

	assert.Equal(t, 1, logs.FilterMessage("instance announced").Len())
	assert.Equal(t, 1, logs.FilterMessage("instance withdrawn").Len())
	assert.Zero(t, logs.FilterMessage("announcement lease lost").Len())
}

func TestEtcd_ReannounceReplacesLease(t *testing.T) {
	fake := newFakeEtcd()
	e := newEtcd(fake, EtcdConfig{})
	ctx := context.Background()

	require.NoError(t, e.Announce(ctx, Instance{Addr: "h:1"}))
	require.NoError(t, e.Announce(ctx, Instance{Addr: "h:1", Methods: []string{"late"}}))

	assert.Equal(t, []int64{10, 10}, fake.grants, "default TTL")
	assert.Equal(t, clientv3.LeaseID(2), fake.leaseOf["/wsrpc/h:1"])

	require.NoError(t, e.Close(ctx))
	assert.Equal(t, []clientv3.LeaseID{2}, fake.revoked)
}

func TestEtcd_PutFailure(t *testing.T) {
	fake := newFakeEtcd()
	fake.putErr = errors.New("unavailable")
	e := newEtcd(fake, EtcdConfig{})

	err := e.Announce(context.Background(), Instance{Addr: "h:1"})
	assert.ErrorContains(t, err, "unavailable")
	require.NoError(t, e.Close(context.Background()))
	assert.Empty(t, fake.revoked)
}

func TestNewEtcd_NoEndpoints(t *testing.T) {
	_, err := NewEtcd(EtcdConfig{})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var a Announcer = Nop{}
	assert.NoError(t, a.Announce(context.Background(), Instance{}))
	assert.NoError(t, a.Close(context.Background()))
}
