// Package command holds the console command table.
//
// A Command is a plain record: a name, the shortcut a user types, a description, and
// the action to run. The Interpreter maps shortcuts to commands and splits a console
// line into the shortcut and its positional arguments.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnknownCommand is returned for a line whose first token is not registered.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrArgument is wrapped by every argument validation failure.
	ErrArgument = errors.New("invalid arguments")
	// ErrDuplicate is returned when registering a shortcut twice.
	ErrDuplicate = errors.New("command already registered")
)

// Action runs a command with its positional arguments. It must not change any
// state when it returns an error.
type Action func(args []string) error

// Command is one entry of the dispatch table.
type Command struct {
	Name        string
	Shortcut    string
	Description string
	Action      Action
}

// Execute runs the action.
func (c *Command) Execute(args []string) error {
	return c.Action(args)
}

// Tokenize splits a console line on whitespace. Every token after the first is a
// positional argument; tokens starting with '-' are ordinary arguments, so signed
// numbers need no quoting.
func Tokenize(line string) (shortcut string, args []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// ParseFloats parses exactly n positional arguments as finite real numbers.
func ParseFloats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrArgument, n, len(args))
	}
	values := make([]float64, n)
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: argument %d (%q) is not a real number", ErrArgument, i+1, arg)
		}
		values[i] = v
	}
	return values, nil
}
