// Package config parses the command line of the ghost-robot program.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"ghost-robot/codec"
	"ghost-robot/connection"
)

const (
	DefaultAddress = "127.0.0.1"
	DefaultPort    = 8562
)

// robotArg is accepted as a positional synonym of -robot.
const robotArg = "robot"

type Config struct {
	Address        string
	Port           int
	Channel        string
	Codec          string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Interval       time.Duration
	Robot          bool

	EtcdEndpoints []string
	AnnounceTTL   time.Duration
	MetricsAddr   string

	DispatchRate  float64 // Messages per second, 0 disables the limit
	DispatchBurst int

	LogLevel  string
	LogFormat string // "console" or "json"
}

// Parse parses args (without the program name). Output from -h and parse errors
// goes to output.
func Parse(args []string, output io.Writer) (*Config, error) {
	c := &Config{}
	var etcd string

	fs := flag.NewFlagSet("ghost-robot", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ghost-robot [flags] [robot]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&c.Address, "address", DefaultAddress, "address the robot publishes on")
	fs.IntVar(&c.Port, "port", DefaultPort, "port the robot publishes on")
	fs.StringVar(&c.Channel, "channel", "", "channel name publishers and subscribers must share")
	fs.StringVar(&c.Codec, "codec", "binary", "envelope codec: binary or json")
	fs.DurationVar(&c.ConnectTimeout, "connect-timeout", 2*time.Second, "how long a subscriber waits for the robot")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", 2*time.Second, "write deadline per subscriber")
	fs.DurationVar(&c.Interval, "interval", 500*time.Millisecond, "control loop period")
	fs.BoolVar(&c.Robot, "robot", false, "run the robot and publish its odometry")
	fs.StringVar(&etcd, "etcd", "", "comma separated etcd endpoints to announce publishers in")
	fs.DurationVar(&c.AnnounceTTL, "announce-ttl", 10*time.Second, "lease of an etcd announcement")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.Float64Var(&c.DispatchRate, "dispatch-rate", 0, "max received messages dispatched per second, 0 for no limit")
	fs.IntVar(&c.DispatchBurst, "dispatch-burst", 10, "burst size of -dispatch-rate")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", "console", "console or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, arg := range fs.Args() {
		if arg != robotArg {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}
		c.Robot = true
	}

	for _, ep := range strings.Split(etcd, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			c.EtcdEndpoints = append(c.EtcdEndpoints, ep)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		errs = append(errs, err)
	}
	if c.ConnectTimeout <= 0 || c.WriteTimeout <= 0 || c.Interval <= 0 {
		errs = append(errs, errors.New("timeouts and interval must be positive"))
	}
	if c.AnnounceTTL < time.Second {
		errs = append(errs, errors.New("announce-ttl must be at least 1s"))
	}
	if c.DispatchRate < 0 {
		errs = append(errs, errors.New("dispatch-rate must not be negative"))
	}
	if c.DispatchRate > 0 && c.DispatchBurst < 1 {
		errs = append(errs, errors.New("dispatch-burst must be at least 1"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ChannelConfiguration returns the channel both roles connect with.
func (c *Config) ChannelConfiguration() (connection.Configuration, error) {
	codecType, err := codec.ParseCodecType(c.Codec)
	if err != nil {
		return connection.Configuration{}, err
	}
	return connection.NewConfiguration(c.Address, c.Port,
		connection.WithChannelName(c.Channel),
		connection.WithCodec(codecType),
		connection.WithConnectTimeout(c.ConnectTimeout),
		connection.WithWriteTimeout(c.WriteTimeout),
	)
}
