package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is a process-local Registry. TTLs are ignored.
type MemoryRegistry struct {
	mu       sync.Mutex
	channels map[string]map[string]Endpoint
	watchers map[string][]chan []Endpoint
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		channels: make(map[string]map[string]Endpoint),
		watchers: make(map[string][]chan []Endpoint),
	}
}

func (m *MemoryRegistry) Announce(ctx context.Context, channel string, endpoint Endpoint, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channel]; !ok {
		m.channels[channel] = make(map[string]Endpoint)
	}
	m.channels[channel][endpoint.Addr] = endpoint
	m.notify(channel)
	return nil
}

func (m *MemoryRegistry) Withdraw(ctx context.Context, channel string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels[channel], addr)
	m.notify(channel)
	return nil
}

func (m *MemoryRegistry) Discover(ctx context.Context, channel string) ([]Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(channel), nil
}

func (m *MemoryRegistry) Watch(ctx context.Context, channel string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	m.mu.Lock()
	m.watchers[channel] = append(m.watchers[channel], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[channel]
		for i, w := range watchers {
			if w == ch {
				m.watchers[channel] = append(watchers[:i], watchers[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch
}

// list returns the endpoints of channel sorted by address. Caller holds mu.
func (m *MemoryRegistry) list(channel string) []Endpoint {
	endpoints := make([]Endpoint, 0, len(m.channels[channel]))
	for _, ep := range m.channels[channel] {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Addr < endpoints[j].Addr })
	return endpoints
}

// notify sends the latest list to watchers, replacing a stale undelivered one. Caller holds mu.
func (m *MemoryRegistry) notify(channel string) {
	endpoints := m.list(channel)
	for _, ch := range m.watchers[channel] {
		select {
		case <-ch:
		default:
		}
		ch <- endpoints
	}
}
