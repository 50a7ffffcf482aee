// Package discovery announces a running wsrpc instance so clients and
// load balancers can find it.
//
// Instances are stored in etcd under /<service>/<addr> with a JSON value
// describing the instance. The key is bound to a TTL lease that is kept
// alive while the process runs, so a crashed instance disappears once
// the lease expires.
package discovery

import (
	"context"
	"encoding/json"
	"strings"
)

// Instance describes one announced server.
type Instance struct {
	Addr    string   `json:"addr"`
	Version string   `json:"version"`
	Methods []string `json:"methods"`
}

// Announcer publishes an instance until closed.
type Announcer interface {
	Announce(ctx context.Context, inst Instance) error
	Close(ctx context.Context) error
}

// Key returns the registry key for addr under service.
func Key(service, addr string) string {
	return Prefix(service) + addr
}

// Prefix returns the key prefix shared by every instance of service.
func Prefix(service string) string {
	return "/" + strings.Trim(service, "/") + "/"
}

// Encode returns the stored value for inst.
func Encode(inst Instance) (string, error) {
	if inst.Methods == nil {
		inst.Methods = []string{}
	}
	data, err := json.Marshal(inst)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a stored value.
func Decode(value []byte) (Instance, error) {
	var inst Instance
	err := json.Unmarshal(value, &inst)
	return inst, err
}

// Nop is an Announcer that does nothing. It is used when no registry
// endpoints are configured.
type Nop struct{}

// Announce implements Announcer.
func (Nop) Announce(context.Context, Instance) error { return nil }

// Close implements Announcer.
func (Nop) Close(context.Context) error { return nil }
