package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ghost-robot/codec"
	"ghost-robot/message"
	"ghost-robot/registry"
	"ghost-robot/transport"
)

const withdrawTimeout = 2 * time.Second

// Publisher is the producing side of a channel. It binds the configured endpoint
// on Start and fans written messages out to every matching subscriber.
type Publisher struct {
	base

	server *transport.Server // Set once by Start, guarded by base.mu
}

// Start binds the endpoint. On failure (address in use, invalid configuration,
// manager shut down) the publisher moves to Failed and is never retried.
func (p *Publisher) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.State() != StateCreated {
		return ErrAlreadyStarted
	}
	if p.manager.isClosed() {
		p.transition(StateCreated, StateFailed)
		return ErrManagerClosed
	}
	if err := p.config.Validate(); err != nil {
		p.transition(StateCreated, StateFailed)
		return err
	}

	srv, err := transport.Listen(p.config.Endpoint(), transport.ServerOptions{
		Channel:      p.config.ChannelName,
		Codec:        p.config.Codec,
		WriteTimeout: p.config.WriteTimeout,
		Logger:       p.log,
	})
	if err != nil {
		p.transition(StateCreated, StateFailed)
		p.log.Error("failed to start publisher", zap.Error(err))
		return fmt.Errorf("start publisher on %s: %w", p.config.Endpoint(), err)
	}

	p.mu.Lock()
	p.server = srv
	p.mu.Unlock()
	p.transition(StateCreated, StateStarted)
	p.log.Info("publisher started", zap.String("listen", srv.Addr().String()))

	p.announce(ctx)
	return nil
}

// Stop closes the endpoint and every subscriber connection. Writers bound to this
// publisher return ErrDisconnected from then on.
func (p *Publisher) Stop() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.transition(StateStarted, StateStopped) {
		return ErrNotStarted
	}

	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	err := srv.Close()

	p.withdraw()
	p.log.Info("publisher stopped")
	return err
}

// SubscriberCount returns the number of subscribers currently receiving messages.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	if srv == nil {
		return 0
	}
	return srv.PeerCount()
}

func (p *Publisher) broadcast(env *message.Envelope) error {
	p.mu.Lock()
	srv, state := p.server, p.state
	p.mu.Unlock()
	if state != StateStarted || srv == nil {
		return ErrDisconnected
	}

	err := srv.Broadcast(env)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrClosed):
		return ErrDisconnected
	case errors.Is(err, transport.ErrEncode):
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	default:
		return err
	}
}

func (p *Publisher) announce(ctx context.Context) {
	reg := p.manager.registry
	if reg == nil {
		return
	}
	endpoint := registry.Endpoint{
		Addr:      p.config.Endpoint(),
		Codec:     p.config.Codec.String(),
		StartedAt: time.Now().Unix(),
	}
	if err := reg.Announce(ctx, p.config.ChannelName, endpoint, p.manager.announceTTL); err != nil {
		p.log.Warn("failed to announce publisher", zap.Error(err))
	}
}

func (p *Publisher) withdraw() {
	reg := p.manager.registry
	if reg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
	defer cancel()
	if err := reg.Withdraw(ctx, p.config.ChannelName, p.config.Endpoint()); err != nil {
		p.log.Warn("failed to withdraw publisher", zap.Error(err))
	}
}

// Writer writes messages of one type through one started Publisher.
// It has no lifecycle of its own and stops working when its Publisher stops.
type Writer[T any] struct {
	publisher *Publisher
	codec     codec.MessageCodec[T]
}

// GetWriter returns a Writer for T bound to p. p must be Started.
func GetWriter[T any](p *Publisher, c codec.MessageCodec[T]) (*Writer[T], error) {
	if p.State() != StateStarted {
		return nil, ErrNotStarted
	}
	return &Writer[T]{publisher: p, codec: c}, nil
}

// TypeID returns the type identifier messages are published under.
func (w *Writer[T]) TypeID() string {
	return w.codec.TypeID()
}

// Write serializes msg and sends it to every subscriber of the channel.
// It returns nil, ErrDisconnected, or an error wrapping ErrSerialization, and never
// retries; a nil return does not mean any subscriber received the message.
func (w *Writer[T]) Write(msg T) error {
	p := w.publisher
	channel := p.config.ChannelName
	if p.State() != StateStarted {
		p.manager.metrics.WriteFailed(channel, "disconnected")
		return ErrDisconnected
	}

	payload, err := w.codec.Serialize(msg)
	if err != nil {
		p.manager.metrics.WriteFailed(channel, "serialization")
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	err = p.broadcast(&message.Envelope{Type: w.codec.TypeID(), Payload: payload})
	if err != nil {
		reason := "disconnected"
		if errors.Is(err, ErrSerialization) {
			reason = "serialization"
		}
		p.manager.metrics.WriteFailed(channel, reason)
		return err
	}
	p.manager.metrics.Published(channel, w.codec.TypeID())
	return nil
}
