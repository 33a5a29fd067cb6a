package connection

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Connection is the common view of publishers and subscribers.
type Connection interface {
	ID() string
	Role() Role
	Configuration() Configuration
	State() State
	Start(ctx context.Context) error
	Stop() error
}

// base carries the identity and state machine shared by both roles.
type base struct {
	id      string
	role    Role
	config  Configuration
	manager *Manager
	log     *zap.Logger

	lifecycle sync.Mutex // Serializes Start and Stop

	mu    sync.Mutex // Guards state
	state State
}

func (b *base) init(m *Manager, role Role, cfg Configuration) {
	b.id = uuid.NewString()
	b.role = role
	b.config = cfg
	b.manager = m
	b.log = m.log.With(
		zap.String("conn", b.id),
		zap.Stringer("role", role),
		zap.Stringer("channel", cfg),
	)
	b.state = StateCreated
	m.metrics.Transition(role.String(), "", StateCreated.String())
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Role() Role {
	return b.role
}

func (b *base) Configuration() Configuration {
	return b.config
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves the state from → to. It reports false, changing nothing, if the
// current state is not from.
func (b *base) transition(from, to State) bool {
	b.mu.Lock()
	if b.state != from {
		b.mu.Unlock()
		return false
	}
	b.state = to
	b.mu.Unlock()

	b.manager.metrics.Transition(b.role.String(), from.String(), to.String())
	b.log.Debug("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	return true
}
