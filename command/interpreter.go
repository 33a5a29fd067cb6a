package command

import (
	"fmt"
	"sync"
)

// Interpreter is the process-wide command table, keyed by shortcut.
type Interpreter struct {
	mu       sync.RWMutex
	commands map[string]*Command
	order    []string
}

func NewInterpreter() *Interpreter {
	return &Interpreter{commands: make(map[string]*Command)}
}

// Register adds cmd. Each shortcut can be registered once.
func (i *Interpreter) Register(cmd *Command) error {
	if cmd.Shortcut == "" || cmd.Action == nil {
		return fmt.Errorf("command %q: shortcut and action are required", cmd.Name)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.commands[cmd.Shortcut]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, cmd.Shortcut)
	}
	i.commands[cmd.Shortcut] = cmd
	i.order = append(i.order, cmd.Shortcut)
	return nil
}

// Lookup returns the command registered under shortcut.
func (i *Interpreter) Lookup(shortcut string) (*Command, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	cmd, ok := i.commands[shortcut]
	return cmd, ok
}

// Commands returns the registered commands in registration order.
func (i *Interpreter) Commands() []*Command {
	i.mu.RLock()
	defer i.mu.RUnlock()
	cmds := make([]*Command, 0, len(i.order))
	for _, s := range i.order {
		cmds = append(cmds, i.commands[s])
	}
	return cmds
}

// Execute tokenizes line and runs the matching command. A blank line is a no-op.
func (i *Interpreter) Execute(line string) error {
	shortcut, args := Tokenize(line)
	if shortcut == "" {
		return nil
	}
	cmd, ok := i.Lookup(shortcut)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, shortcut)
	}
	if err := cmd.Execute(args); err != nil {
		return fmt.Errorf("%s: %w", cmd.Shortcut, err)
	}
	return nil
}
