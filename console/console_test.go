package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghost-robot/command"
	"ghost-robot/registry"
)

func newInterpreter(t *testing.T, got *[][]string) *command.Interpreter {
	t.Helper()
	in := command.NewInterpreter()
	require.NoError(t, in.Register(&command.Command{
		Name:        "EchoCommand",
		Shortcut:    "echo",
		Description: "records its arguments",
		Action: func(args []string) error {
			*got = append(*got, args)
			return nil
		},
	}))
	require.NoError(t, in.Register(&command.Command{
		Name:     "PairCommand",
		Shortcut: "pair",
		Action: func(args []string) error {
			_, err := command.ParseFloats(args, 2)
			return err
		},
	}))
	return in
}

func TestConsoleRunsCommands(t *testing.T) {
	var got [][]string
	var out bytes.Buffer
	c := New(newInterpreter(t, &got), &out)

	input := "echo a b\n\n   \necho -1.5\n"
	require.NoError(t, c.Run(context.Background(), strings.NewReader(input)))

	assert.Equal(t, [][]string{{"a", "b"}, {"-1.5"}}, got)
	assert.Empty(t, out.String())
}

func TestConsoleReportsFailuresAndContinues(t *testing.T) {
	var got [][]string
	var out bytes.Buffer
	c := New(newInterpreter(t, &got), &out)

	input := "bogus\npair 1\npair x y\necho done\n"
	require.NoError(t, c.Run(context.Background(), strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, "unknown command: bogus")
	assert.Contains(t, text, "expected 2 arguments, got 1")
	assert.Contains(t, text, "is not a real number")
	assert.Equal(t, [][]string{{"done"}}, got)
}

func TestConsoleExit(t *testing.T) {
	var got [][]string
	var out bytes.Buffer
	exited := 0
	c := New(newInterpreter(t, &got), &out, WithExit(func() { exited++ }))

	input := "echo before\n#exit\necho after\n"
	require.NoError(t, c.Run(context.Background(), strings.NewReader(input)))

	assert.Equal(t, 1, exited)
	assert.Equal(t, [][]string{{"before"}}, got)
}

func TestConsoleHelp(t *testing.T) {
	var got [][]string
	var out bytes.Buffer
	c := New(newInterpreter(t, &got), &out)

	assert.True(t, c.Handle(context.Background(), "#help"))
	text := out.String()
	assert.Contains(t, text, "echo")
	assert.Contains(t, text, "records its arguments")
	assert.Contains(t, text, "pair")
	assert.Contains(t, text, "#exit")
	assert.Less(t, strings.Index(text, "echo"), strings.Index(text, "pair"))
}

func TestConsoleUnknownBuiltin(t *testing.T) {
	var out bytes.Buffer
	c := New(command.NewInterpreter(), &out)

	assert.True(t, c.Handle(context.Background(), "#nope"))
	assert.Contains(t, out.String(), "unknown built-in #nope")
}

func TestConsoleChannels(t *testing.T) {
	ctx := context.Background()

	var out bytes.Buffer
	New(command.NewInterpreter(), &out).Handle(ctx, "#channels")
	assert.Contains(t, out.String(), "no registry configured")

	reg := registry.NewMemoryRegistry()
	out.Reset()
	c := New(command.NewInterpreter(), &out, WithRegistry(reg, "odom"))
	c.Handle(ctx, "#channels")
	assert.Contains(t, out.String(), `no publishers announced for channel "odom"`)

	require.NoError(t, reg.Announce(ctx, "odom", registry.Endpoint{Addr: "127.0.0.1:8562", Codec: "binary", StartedAt: 0}, 10))
	out.Reset()
	c.Handle(ctx, "#channels")
	assert.Contains(t, out.String(), "127.0.0.1:8562 codec=binary since=1970-01-01T00:00:00Z")
}

func TestConsoleStopsOnCancelledContext(t *testing.T) {
	var got [][]string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(newInterpreter(t, &got), &bytes.Buffer{})
	require.NoError(t, c.Run(ctx, strings.NewReader("echo x\n")))
	assert.Empty(t, got)
}
