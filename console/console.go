// Package console reads command lines from an input stream and runs them through a
// command interpreter. Failures are printed back to the user; they never end the
// console. Lines starting with '#' are console built-ins:
//
//	#help      list the registered commands
//	#channels  list the publishers announced for the configured channel
//	#exit      stop the program
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"ghost-robot/command"
	"ghost-robot/registry"
)

const builtinPrefix = "#"

// discoverTimeout bounds a #channels lookup.
const discoverTimeout = 2 * time.Second

type Console struct {
	interpreter *command.Interpreter
	out         io.Writer
	log         *zap.Logger
	onExit      func()

	registry registry.Registry
	channel  string
}

type Option func(*Console)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Console) { c.log = logger }
}

// WithExit sets the function #exit calls.
func WithExit(f func()) Option {
	return func(c *Console) { c.onExit = f }
}

// WithRegistry enables #channels for channel.
func WithRegistry(reg registry.Registry, channel string) Option {
	return func(c *Console) {
		c.registry = reg
		c.channel = channel
	}
}

func New(interpreter *command.Interpreter, out io.Writer, opts ...Option) *Console {
	c := &Console{
		interpreter: interpreter,
		out:         out,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes lines from in until it is exhausted, #exit is entered, or ctx is
// done. The context is only checked between lines.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if !c.Handle(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// Handle runs one line and reports whether the console should keep reading.
func (c *Console) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, builtinPrefix) {
		return c.builtin(ctx, strings.TrimPrefix(line, builtinPrefix))
	}

	if err := c.interpreter.Execute(line); err != nil {
		c.log.Debug("command failed", zap.String("line", line), zap.Error(err))
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return true
}

func (c *Console) builtin(ctx context.Context, name string) bool {
	switch name {
	case "exit":
		if c.onExit != nil {
			c.onExit()
		}
		return false
	case "help":
		c.help()
	case "channels":
		c.channels(ctx)
	default:
		fmt.Fprintf(c.out, "error: unknown built-in #%s (try #help)\n", name)
	}
	return true
}

func (c *Console) help() {
	fmt.Fprintln(c.out, "commands:")
	for _, cmd := range c.interpreter.Commands() {
		fmt.Fprintf(c.out, "  %-12s %s\n", cmd.Shortcut, cmd.Description)
	}
	fmt.Fprintln(c.out, "built-ins:")
	fmt.Fprintln(c.out, "  #help        list commands")
	fmt.Fprintln(c.out, "  #channels    list announced publishers")
	fmt.Fprintln(c.out, "  #exit        stop the program")
}

func (c *Console) channels(ctx context.Context) {
	if c.registry == nil {
		fmt.Fprintln(c.out, "no registry configured")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	endpoints, err := c.registry.Discover(ctx, c.channel)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	if len(endpoints) == 0 {
		fmt.Fprintf(c.out, "no publishers announced for channel %q\n", c.channel)
		return
	}
	for _, ep := range endpoints {
		fmt.Fprintf(c.out, "%s codec=%s since=%s\n", ep.Addr, ep.Codec,
			time.Unix(ep.StartedAt, 0).UTC().Format(time.RFC3339))
	}
}
