package module

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestModuleRunsUntilBehaviorStops(t *testing.T) {
	var runs, shutdowns atomic.Int32
	var states []State

	m := New("test",
		WithLogger(zaptest.NewLogger(t)),
		WithInterval(time.Millisecond),
		WithInitializeBehavior(func(ctx context.Context, m *Module) error {
			states = append(states, m.State())
			return nil
		}),
		WithRunningBehavior(func(ctx context.Context, m *Module) bool {
			if runs.Load() == 0 {
				states = append(states, m.State())
			}
			return runs.Add(1) < 3
		}),
		WithShutdownBehavior(func(m *Module) { shutdowns.Add(1) }),
	)
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []State{StateInitializing, StateRunning}, states)
	assert.Equal(t, int32(3), runs.Load())
	assert.Equal(t, int32(1), shutdowns.Load())
	assert.Equal(t, StateStopped, m.State())

	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
}

func TestModuleInitializationFailure(t *testing.T) {
	var runs, shutdowns atomic.Int32
	cause := errors.New("no publisher")

	m := New("test",
		WithInitializeBehavior(func(context.Context, *Module) error { return cause }),
		WithRunningBehavior(func(context.Context, *Module) bool { runs.Add(1); return true }),
		WithShutdownBehavior(func(*Module) { shutdowns.Add(1) }),
	)

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrInitialization)
	assert.Equal(t, StateInitializationFailed, m.State())
	assert.Equal(t, int32(0), runs.Load())
	assert.Equal(t, int32(1), shutdowns.Load())
}

func TestModuleStopWithinOneInterval(t *testing.T) {
	m := New("test",
		WithInterval(50*time.Millisecond),
		WithRunningBehavior(func(context.Context, *Module) bool { return true }),
	)

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	require.Eventually(t, func() bool { return m.State() == StateRunning }, time.Second, time.Millisecond)
	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("module did not stop")
	}
	assert.Equal(t, StateStopped, m.State())
}

func TestModuleStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New("test", WithInterval(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	require.Eventually(t, func() bool { return m.State() == StateRunning }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("module did not stop on cancel")
	}
}

func TestModuleInterpreterDefault(t *testing.T) {
	m := New("test")
	assert.NotNil(t, m.Interpreter())
	assert.Equal(t, "test", m.Name())
}
