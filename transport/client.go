package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"ghost-robot/codec"
	"ghost-robot/message"
	"ghost-robot/protocol"
)

// DefaultHeartbeatInterval is how often a subscriber probes its publisher.
const DefaultHeartbeatInterval = 30 * time.Second

// EnvelopeHandler receives each decoded envelope together with its frame header.
// It runs on the recvLoop goroutine, so envelopes arrive in publish order.
type EnvelopeHandler func(header *protocol.Header, env *message.Envelope)

// DialOptions configures a ClientTransport.
type DialOptions struct {
	Channel           string          // Channel name sent in the handshake
	Codec             codec.CodecType // Envelope encoding expected from the publisher
	Timeout           time.Duration   // Connection-establishment timeout
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

// ClientTransport is the subscriber side of one channel connection.
type ClientTransport struct {
	conn      net.Conn
	codecType codec.CodecType
	heartbeat time.Duration
	log       *zap.Logger

	sending sync.Mutex // Heartbeats and handshake share the conn

	mu      sync.Mutex // Guards started and closed
	started bool
	closed  bool
	done    chan struct{}
}

// Dial connects to a publisher at address and sends the handshake. It fails if no
// publisher accepts the connection within opts.Timeout or ctx is cancelled.
func Dial(ctx context.Context, address string, opts DialOptions) (*ClientTransport, error) {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	t := &ClientTransport{
		conn:      conn,
		codecType: opts.Codec,
		heartbeat: opts.HeartbeatInterval,
		log:       opts.Logger.With(zap.String("remote", address)),
		done:      make(chan struct{}),
	}

	header := protocol.Header{
		CodecType: byte(opts.Codec),
		MsgType:   protocol.MsgTypeHandshake,
		BodyLen:   uint32(len(opts.Channel)),
	}
	if opts.Timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(opts.Timeout))
	}
	if err := t.write(&header, []byte(opts.Channel)); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetWriteDeadline(time.Time{})
	return t, nil
}

// Receive starts the recvLoop and heartbeatLoop goroutines. onMessage is called for
// every publish frame; onLost is called once if the connection breaks for any reason
// other than Close. Receive must be called at most once.
func (t *ClientTransport) Receive(onMessage EnvelopeHandler, onLost func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true
	go t.recvLoop(onMessage, onLost)
	go t.heartbeatLoop()
}

// Done is closed when the recvLoop has exited.
func (t *ClientTransport) Done() <-chan struct{} {
	return t.done
}

// Close closes the connection, which ends the recvLoop. It does not wait for the
// loop to exit, so it is safe to call from inside a handler.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	started := t.started
	t.mu.Unlock()

	err := t.conn.Close()
	if !started {
		close(t.done)
	}
	return err
}

// recvLoop is the only reader of the connection.
// A frame whose envelope fails to decode is skipped; only a broken stream ends the loop.
func (t *ClientTransport) recvLoop(onMessage EnvelopeHandler, onLost func(error)) {
	defer close(t.done)
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.conn.Close()
			if !t.isClosed() && onLost != nil {
				onLost(err)
			}
			return
		}

		if header.MsgType != protocol.MsgTypePublish {
			continue
		}

		env := message.Envelope{}
		cdc := codec.GetCodec(codec.CodecType(header.CodecType))
		if err := cdc.Decode(body, &env); err != nil {
			t.log.Warn("dropping undecodable envelope", zap.Uint32("seq", header.Seq), zap.Error(err))
			continue
		}
		onMessage(header, &env)
	}
}

// heartbeatLoop sends periodic heartbeat frames so the publisher notices dead subscribers.
func (t *ClientTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()
	header := &protocol.Header{
		CodecType: byte(t.codecType),
		MsgType:   protocol.MsgTypeHeartbeat,
	}
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.write(header, nil); err != nil {
				return // Connection broken, recvLoop reports it
			}
		}
	}
}

func (t *ClientTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *ClientTransport) write(header *protocol.Header, body []byte) error {
	t.sending.Lock()
	defer t.sending.Unlock()
	return protocol.Encode(t.conn, header, body)
}
