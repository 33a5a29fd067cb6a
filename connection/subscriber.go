package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ghost-robot/codec"
	"ghost-robot/message"
	"ghost-robot/middleware"
	"ghost-robot/protocol"
	"ghost-robot/transport"
)

const stopWaitTimeout = time.Second

// Subscriber is the consuming side of a channel. After Start, a background
// goroutine receives messages and dispatches them to the registered handlers.
type Subscriber struct {
	base

	mwMu        sync.Mutex
	middlewares []middleware.Middleware

	regMu      sync.RWMutex
	registries []*HandlerRegistry

	// Set once by Start, guarded by base.mu
	transport *transport.ClientTransport
	dispatch  middleware.HandlerFunc
	cancel    context.CancelFunc
	ctx       context.Context

	dispatching atomic.Bool // True while the receive goroutine runs handlers
}

// Use adds dispatch middleware after the manager's. It only affects a later Start.
func (s *Subscriber) Use(mw middleware.Middleware) {
	s.mwMu.Lock()
	defer s.mwMu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// AddMessageHandler attaches a new, empty handler registry to the subscriber.
// Registries may be added at any time; they see messages received afterwards.
func (s *Subscriber) AddMessageHandler() *HandlerRegistry {
	r := &HandlerRegistry{handlers: make(map[string][]handlerFunc)}
	s.regMu.Lock()
	s.registries = append(s.registries, r)
	s.regMu.Unlock()
	return r
}

// Start connects to the publisher at the configured endpoint and begins dispatching.
// It fails, moving the subscriber to Failed, when no publisher accepts the connection
// within ConnectTimeout.
func (s *Subscriber) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateCreated {
		return ErrAlreadyStarted
	}
	if s.manager.isClosed() {
		s.transition(StateCreated, StateFailed)
		return ErrManagerClosed
	}
	if err := s.config.Validate(); err != nil {
		s.transition(StateCreated, StateFailed)
		return err
	}

	t, err := transport.Dial(ctx, s.config.Endpoint(), transport.DialOptions{
		Channel: s.config.ChannelName,
		Codec:   s.config.Codec,
		Timeout: s.config.ConnectTimeout,
		Logger:  s.log,
	})
	if err != nil {
		s.transition(StateCreated, StateFailed)
		s.log.Error("failed to start subscriber", zap.Error(err))
		return fmt.Errorf("start subscriber on %s: %w", s.config.Endpoint(), err)
	}

	s.mwMu.Lock()
	mws := append(append([]middleware.Middleware(nil), s.manager.middlewares...), s.middlewares...)
	s.mwMu.Unlock()

	dispatchCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.transport = t
	s.dispatch = middleware.Chain(mws...)(s.deliver)
	s.ctx, s.cancel = dispatchCtx, cancel
	s.mu.Unlock()

	s.transition(StateCreated, StateStarted)
	s.log.Info("subscriber started")
	t.Receive(s.onEnvelope, s.onLost)
	return nil
}

// Stop closes the connection and waits briefly for the receive loop to exit.
// Called from a handler, it does not wait: the loop exits once the handler returns.
func (s *Subscriber) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.transition(StateStarted, StateStopped) {
		return ErrNotStarted
	}

	s.mu.Lock()
	t, cancel := s.transport, s.cancel
	s.mu.Unlock()

	cancel()
	err := t.Close()
	if s.dispatching.Load() {
		s.log.Info("subscriber stopped")
		return err
	}
	select {
	case <-t.Done():
	case <-time.After(stopWaitTimeout):
		s.log.Warn("receive loop still running after stop")
	}
	s.log.Info("subscriber stopped")
	return err
}

// onEnvelope runs on the receive goroutine, one envelope at a time.
func (s *Subscriber) onEnvelope(header *protocol.Header, env *message.Envelope) {
	channel := s.config.ChannelName
	s.manager.metrics.Received(channel, env.Type)

	s.mu.Lock()
	dispatch, ctx := s.dispatch, s.ctx
	s.mu.Unlock()

	s.dispatching.Store(true)
	err := dispatch(ctx, env)
	s.dispatching.Store(false)
	if err != nil {
		s.manager.metrics.DispatchFailed(channel, env.Type)
		s.log.Warn("failed to dispatch message",
			zap.String("type", env.Type),
			zap.Uint32("seq", header.Seq),
			zap.Error(err))
	}
}

func (s *Subscriber) onLost(err error) {
	if s.transition(StateStarted, StateFailed) {
		s.log.Error("lost connection to publisher", zap.Error(err))
	}
}

// deliver calls every handler registered for the envelope's type, registry by
// registry, each in registration order. Unknown types are dropped silently.
func (s *Subscriber) deliver(ctx context.Context, env *message.Envelope) error {
	s.regMu.RLock()
	registries := append([]*HandlerRegistry(nil), s.registries...)
	s.regMu.RUnlock()

	var errs []error
	for _, r := range registries {
		for _, h := range r.handlersFor(env.Type) {
			if err := h(env.Payload); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type handlerFunc func(payload []byte) error

// HandlerRegistry maps message type identifiers to ordered handler lists.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]handlerFunc
}

// AddHandler appends fn to the handlers of the type identified by c. Every received
// message of that type is deserialized with c and passed to fn; a message that
// fails to deserialize is reported to the subscriber's log and skipped.
func AddHandler[T any](r *HandlerRegistry, c codec.MessageCodec[T], fn func(T)) {
	r.add(c.TypeID(), func(payload []byte) error {
		msg, err := c.Deserialize(payload)
		if err != nil {
			return err
		}
		fn(msg)
		return nil
	})
}

func (r *HandlerRegistry) add(typeID string, h handlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typeID] = append(r.handlers[typeID], h)
}

// HandlerCount returns the number of handlers registered for typeID.
func (r *HandlerRegistry) HandlerCount(typeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[typeID])
}

func (r *HandlerRegistry) handlersFor(typeID string) []handlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]handlerFunc(nil), r.handlers[typeID]...)
}
