package connection

import (
	"sync"

	"go.uber.org/zap"

	"ghost-robot/metric"
	"ghost-robot/middleware"
	"ghost-robot/registry"
)

const defaultAnnounceTTL = 10 // seconds

// Manager creates publishers and subscribers and owns them until Shutdown.
type Manager struct {
	log         *zap.Logger
	metrics     *metric.Metrics
	registry    registry.Registry // nil disables announcement
	announceTTL int64
	middlewares []middleware.Middleware // Applied to every subscriber's dispatch

	mu     sync.Mutex
	conns  []Connection // Creation order
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

func WithMetrics(metrics *metric.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithRegistry announces every started publisher in reg with a lease of ttlSeconds.
func WithRegistry(reg registry.Registry, ttlSeconds int64) Option {
	return func(m *Manager) {
		m.registry = reg
		if ttlSeconds > 0 {
			m.announceTTL = ttlSeconds
		}
	}
}

// WithMiddleware installs dispatch middleware on every subscriber, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(m *Manager) { m.middlewares = append(m.middlewares, mws...) }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		log:         zap.NewNop(),
		announceTTL: defaultAnnounceTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreatePublisher allocates a publisher for cfg. No I/O happens until Start.
func (m *Manager) CreatePublisher(cfg Configuration) *Publisher {
	p := &Publisher{}
	p.init(m, RolePublisher, cfg)
	m.add(p)
	return p
}

// CreateSubscriber allocates a subscriber for cfg. No I/O happens until Start.
func (m *Manager) CreateSubscriber(cfg Configuration) *Subscriber {
	s := &Subscriber{}
	s.init(m, RoleSubscriber, cfg)
	m.add(s)
	return s
}

func (m *Manager) add(c Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = append(m.conns, c)
}

// Connections returns every connection created so far, in creation order.
func (m *Manager) Connections() []Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Connection(nil), m.conns...)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Shutdown stops every Started connection in reverse creation order. A failing Stop is
// logged and does not prevent the others from stopping. Later calls do nothing.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conns := append([]Connection(nil), m.conns...)
	m.mu.Unlock()

	stopped := 0
	for i := len(conns) - 1; i >= 0; i-- {
		c := conns[i]
		if c.State() != StateStarted {
			continue
		}
		m.log.Debug("stopping connection", zap.String("conn", c.ID()), zap.Stringer("role", c.Role()))
		if err := c.Stop(); err != nil {
			m.log.Warn("failed to stop connection",
				zap.String("conn", c.ID()),
				zap.Stringer("role", c.Role()),
				zap.Error(err))
			continue
		}
		stopped++
	}
	m.log.Info("connection manager shut down", zap.Int("stopped", stopped), zap.Int("created", len(conns)))
}
