// Package module runs a program as an initialize-then-repeat control loop.
//
//	Uninitialized ──Start──→ Initializing ──ok──→ Running ──stop──→ Stopped
//	                              │
//	                              └──error──→ InitializationFailed
//
// The running behavior is called once per interval. The loop stops when the behavior
// returns false, when Stop is called (e.g. by the console's #exit), or when the
// context passed to Start is cancelled; the shutdown behavior then runs exactly once.
package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ghost-robot/command"
)

// DefaultInterval is the pause between two runs of the running behavior.
const DefaultInterval = 500 * time.Millisecond

var (
	// ErrInitialization wraps the error returned by a failed initialize behavior.
	ErrInitialization = errors.New("module initialization failed")
	// ErrAlreadyStarted is returned by Start on a module that left Uninitialized.
	ErrAlreadyStarted = errors.New("module already started")
)

// State of a Module.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StateStopped
	StateInitializationFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateInitializationFailed:
		return "initialization_failed"
	default:
		return "unknown"
	}
}

// InitializeFunc prepares the module. A non-nil error aborts startup.
type InitializeFunc func(ctx context.Context, m *Module) error

// RunFunc performs one iteration; returning false stops the loop.
type RunFunc func(ctx context.Context, m *Module) bool

// ShutdownFunc releases what InitializeFunc acquired.
type ShutdownFunc func(m *Module)

// Module is the top-level lifecycle of a process.
type Module struct {
	name        string
	interval    time.Duration
	log         *zap.Logger
	interpreter *command.Interpreter

	initialize InitializeFunc
	run        RunFunc
	shutdown   ShutdownFunc

	stopOnce sync.Once
	stopCh   chan struct{}

	mu    sync.Mutex
	state State
}

// Option configures a Module.
type Option func(*Module)

func WithInitializeBehavior(f InitializeFunc) Option {
	return func(m *Module) { m.initialize = f }
}

func WithRunningBehavior(f RunFunc) Option {
	return func(m *Module) { m.run = f }
}

func WithShutdownBehavior(f ShutdownFunc) Option {
	return func(m *Module) { m.shutdown = f }
}

func WithInterval(d time.Duration) Option {
	return func(m *Module) { m.interval = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Module) { m.log = logger }
}

func WithInterpreter(i *command.Interpreter) Option {
	return func(m *Module) { m.interpreter = i }
}

// New creates a module named name.
func New(name string, opts ...Option) *Module {
	m := &Module{
		name:     name,
		interval: DefaultInterval,
		log:      zap.NewNop(),
		stopCh:   make(chan struct{}),
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interpreter == nil {
		m.interpreter = command.NewInterpreter()
	}
	m.log = m.log.With(zap.String("module", name))
	return m
}

func (m *Module) Name() string {
	return m.name
}

func (m *Module) Logger() *zap.Logger {
	return m.log
}

// Interpreter is the command table initialize behaviors register commands into.
func (m *Module) Interpreter() *command.Interpreter {
	return m.interpreter
}

func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Module) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	m.log.Debug("module state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
}

// Stop asks the loop to exit. It returns immediately; the loop notices within one
// interval at most. Safe to call from any goroutine, any number of times.
func (m *Module) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Start initializes the module and then blocks running the loop until it stops.
// It returns an error wrapping ErrInitialization if initialization failed, in which
// case the running behavior never runs.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.mu.Unlock()
	m.setState(StateInitializing)

	if m.initialize != nil {
		if err := m.initialize(ctx, m); err != nil {
			m.setState(StateInitializationFailed)
			m.log.Error("initialization failed", zap.Error(err))
			m.teardown()
			return fmt.Errorf("%w: %v", ErrInitialization, err)
		}
	}

	m.setState(StateRunning)
	m.log.Info("module running", zap.Duration("interval", m.interval))
	m.loop(ctx)

	m.setState(StateStopped)
	m.teardown()
	m.log.Info("module stopped")
	return nil
}

func (m *Module) loop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if m.run != nil && !m.run(ctx, m) {
			return
		}

		timer.Reset(m.interval)
		select {
		case <-timer.C:
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Module) teardown() {
	if m.shutdown != nil {
		m.shutdown(m)
	}
}
