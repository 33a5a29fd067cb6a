// Package registry provides channel announcement backed by etcd.
//
// etcd is used as a directory of running publishers:
//
//	Key:   /ghost/channels/{ChannelName}/{Addr}
//	Value: JSON-encoded Endpoint
//
// Announcement uses TTL-based leases: if the publisher process dies, the lease expires
// and the entry is removed automatically.
package registry

import (
	"context"
	"encoding/json"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key → lease, revoked on Withdraw
}

// NewEtcdRegistry creates a registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c, leases: make(map[string]clientv3.LeaseID)}, nil
}

// Announce stores endpoint under the channel with a TTL lease and keeps the lease alive.
//
// Flow:
//  1. Create a lease with the given TTL (seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to renew the lease until Withdraw or Close
func (r *EtcdRegistry) Announce(ctx context.Context, channel string, endpoint Endpoint, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(endpoint)
	if err != nil {
		return err
	}

	key := keyPrefix(channel) + endpoint.Addr
	_, err = r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// KeepAlive outlives the announcing call, so it must not use ctx.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Withdraw removes an endpoint and revokes its lease, which also stops the keepalive.
func (r *EtcdRegistry) Withdraw(ctx context.Context, channel string, addr string) error {
	key := keyPrefix(channel) + addr
	r.mu.Lock()
	leaseID, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if ok {
		_, err := r.client.Revoke(ctx, leaseID)
		return err
	}
	_, err := r.client.Delete(ctx, key)
	return err
}

// Discover returns all currently announced endpoints of a channel.
func (r *EtcdRegistry) Discover(ctx context.Context, channel string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, keyPrefix(channel), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var endpoint Endpoint
		if err := json.Unmarshal(kv.Value, &endpoint); err != nil {
			continue // Skip malformed entries
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, nil
}

// Watch emits the full endpoint list of a channel whenever it changes, until ctx ends.
func (r *EtcdRegistry) Watch(ctx context.Context, channel string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, keyPrefix(channel), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list rather than applying individual events
			endpoints, err := r.Discover(ctx, channel)
			if err != nil {
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close closes the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
