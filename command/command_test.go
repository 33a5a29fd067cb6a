package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	shortcut, args := Tokenize("  updateVel   -1.5\t2 ")
	assert.Equal(t, "updateVel", shortcut)
	assert.Equal(t, []string{"-1.5", "2"}, args)

	shortcut, args = Tokenize("   ")
	assert.Empty(t, shortcut)
	assert.Empty(t, args)
}

func TestParseFloats(t *testing.T) {
	values, err := ParseFloats([]string{"1.0", "-0.25"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, -0.25}, values)

	values, err = ParseFloats([]string{"+3", "1e-3"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0.001}, values)

	for _, args := range [][]string{
		{"1.0"},
		{"1.0", "2.0", "3.0"},
		{"abc", "0.0"},
		{"1.0", "NaN"},
		{"Inf", "0"},
		{},
	} {
		_, err := ParseFloats(args, 2)
		assert.ErrorIs(t, err, ErrArgument, "args %v", args)
	}
}

func TestInterpreterExecute(t *testing.T) {
	interp := NewInterpreter()
	var got []string
	require.NoError(t, interp.Register(&Command{
		Name:     "EchoCommand",
		Shortcut: "echo",
		Action: func(args []string) error {
			got = args
			return nil
		},
	}))

	require.NoError(t, interp.Execute("echo a -b"))
	assert.Equal(t, []string{"a", "-b"}, got)

	require.NoError(t, interp.Execute(""))

	err := interp.Execute("nope 1 2")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestInterpreterPropagatesActionError(t *testing.T) {
	interp := NewInterpreter()
	failure := errors.New("boom")
	require.NoError(t, interp.Register(&Command{Shortcut: "fail", Action: func([]string) error { return failure }}))

	assert.ErrorIs(t, interp.Execute("fail"), failure)
}

func TestInterpreterRegisterOnce(t *testing.T) {
	interp := NewInterpreter()
	cmd := &Command{Name: "A", Shortcut: "a", Action: func([]string) error { return nil }}
	require.NoError(t, interp.Register(cmd))
	assert.ErrorIs(t, interp.Register(cmd), ErrDuplicate)
	assert.Error(t, interp.Register(&Command{Name: "NoAction", Shortcut: "b"}))

	require.NoError(t, interp.Register(&Command{Name: "B", Shortcut: "b", Action: func([]string) error { return nil }}))
	cmds := interp.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "a", cmds[0].Shortcut)
	assert.Equal(t, "b", cmds[1].Shortcut)
}
