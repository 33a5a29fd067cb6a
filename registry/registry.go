package registry

import "context"

// Endpoint describes a started publisher of a channel.
type Endpoint struct {
	Addr      string // "host:port" the publisher is bound to
	Codec     string // Envelope codec name ("binary", "json")
	StartedAt int64  // Unix seconds
}

// Registry announces publishers per channel name. It is informational: subscribers
// still connect to the address in their own configuration.
type Registry interface {
	Announce(ctx context.Context, channel string, endpoint Endpoint, ttl int64) error
	Withdraw(ctx context.Context, channel string, addr string) error
	Discover(ctx context.Context, channel string) ([]Endpoint, error)
	Watch(ctx context.Context, channel string) <-chan []Endpoint
}

// keyPrefix is the key prefix of a channel; the empty channel name maps to "_".
func keyPrefix(channel string) string {
	if channel == "" {
		channel = "_"
	}
	return "/ghost/channels/" + channel + "/"
}
