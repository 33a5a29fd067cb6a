package connection

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"ghost-robot/codec"
)

const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
)

// Configuration describes how to reach a channel. It is a value: copies are
// independent and nothing mutates it after construction. A publisher and a
// subscriber only talk to each other when their configurations are identical.
type Configuration struct {
	Address     string
	Port        int
	ChannelName string          // Empty is the default channel
	Codec       codec.CodecType // Envelope encoding on the wire

	ConnectTimeout time.Duration // Subscriber connection-establishment timeout
	WriteTimeout   time.Duration // Publisher per-subscriber write deadline
}

// ConfigOption customizes a Configuration in NewConfiguration.
type ConfigOption func(*Configuration)

func WithChannelName(name string) ConfigOption {
	return func(c *Configuration) { c.ChannelName = name }
}

func WithCodec(t codec.CodecType) ConfigOption {
	return func(c *Configuration) { c.Codec = t }
}

func WithConnectTimeout(d time.Duration) ConfigOption {
	return func(c *Configuration) { c.ConnectTimeout = d }
}

func WithWriteTimeout(d time.Duration) ConfigOption {
	return func(c *Configuration) { c.WriteTimeout = d }
}

// NewConfiguration builds a validated Configuration with the binary codec and
// default timeouts.
func NewConfiguration(address string, port int, opts ...ConfigOption) (Configuration, error) {
	c := Configuration{
		Address:        address,
		Port:           port,
		Codec:          codec.CodecTypeBinary,
		ConnectTimeout: DefaultConnectTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// Validate checks the address, the port range and the codec.
func (c Configuration) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidConfiguration)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidConfiguration, c.Port)
	}
	if c.Codec != codec.CodecTypeJSON && c.Codec != codec.CodecTypeBinary {
		return fmt.Errorf("%w: unknown codec %d", ErrInvalidConfiguration, byte(c.Codec))
	}
	if c.ConnectTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfiguration)
	}
	return nil
}

// Endpoint returns "address:port".
func (c Configuration) Endpoint() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func (c Configuration) String() string {
	if c.ChannelName == "" {
		return c.Endpoint()
	}
	return c.ChannelName + "@" + c.Endpoint()
}
