// Package transport implements the TCP plumbing underneath publishers and subscribers.
//
// A Server is the producing side: it binds the channel endpoint, accepts subscriber
// connections, and fans every published envelope out to the subscribers whose
// handshake matched its channel. A ClientTransport is the consuming side: it dials the
// endpoint, performs the handshake, and runs a single recvLoop that hands decoded
// envelopes to a callback.
//
//	Publisher ──Broadcast(seq=1..n)──┬──→ conn A (channel "odom") ──→ recvLoop → handlers
//	                                 ├──→ conn B (channel "odom") ──→ recvLoop → handlers
//	                                 └──x conn C (channel "other")  held idle, never written
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ghost-robot/codec"
	"ghost-robot/message"
	"ghost-robot/protocol"
)

var (
	// ErrClosed is returned by operations on a closed Server.
	ErrClosed = errors.New("transport: closed")
	// ErrEncode wraps envelope encoding failures.
	ErrEncode = errors.New("transport: encode envelope")
)

const (
	handshakeTimeout    = 5 * time.Second
	shutdownTimeout     = 3 * time.Second
	defaultWriteTimeout = 2 * time.Second
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Channel      string          // Channel name subscribers must present in their handshake
	Codec        codec.CodecType // Envelope encoding; subscribers must use the same one
	WriteTimeout time.Duration   // Deadline for writing one frame to one subscriber
	Logger       *zap.Logger
}

// Server accepts subscriber connections and broadcasts envelopes to them.
type Server struct {
	listener     net.Listener
	channel      string
	codecType    codec.CodecType
	writeTimeout time.Duration
	log          *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{} // Every accepted connection, closed on shutdown
	peers map[net.Conn]struct{} // Connections whose handshake matched, receive broadcasts

	sending  sync.Mutex // Serializes broadcasts so frames keep their sequence order
	seq      uint32     // Protected by sending
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// Listen binds address and starts the accept loop in the background.
// It fails if the address cannot be bound (e.g., already in use).
func Listen(address string, opts ServerOptions) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		listener:     listener,
		channel:      opts.Channel,
		codecType:    opts.Codec,
		writeTimeout: opts.WriteTimeout,
		log:          opts.Logger.With(zap.String("listen", listener.Addr().String())),
		conns:        make(map[net.Conn]struct{}),
		peers:        make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// PeerCount returns the number of subscribers currently receiving broadcasts.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// serve is the accept loop: one goroutine per connection.
func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// During shutdown, listener.Close() causes Accept to return an error.
			if !s.shutdown.Load() {
				s.log.Warn("accept failed, stop accepting subscribers", zap.Error(err))
			}
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn reads the handshake, then keeps reading (heartbeats) until the
// connection breaks. Only the reader notices a dead subscriber early; writes
// are done by Broadcast.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)

	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	header, body, err := protocol.Decode(conn)
	if err != nil {
		log.Debug("handshake failed", zap.Error(err))
		return
	}
	if header.MsgType != protocol.MsgTypeHandshake {
		log.Debug("expected handshake frame", zap.Uint8("msg_type", uint8(header.MsgType)))
		return
	}
	conn.SetReadDeadline(time.Time{})

	if string(body) == s.channel && codec.CodecType(header.CodecType) == s.codecType {
		s.mu.Lock()
		s.peers[conn] = struct{}{}
		s.mu.Unlock()
		log.Info("subscriber attached", zap.String("channel", s.channel))
	} else {
		// Mismatched configuration is not an error: the connection stays open
		// and simply never receives anything.
		log.Debug("subscriber configuration does not match, holding idle",
			zap.String("channel", string(body)),
			zap.Stringer("codec", codec.CodecType(header.CodecType)))
	}

	for {
		if _, _, err := protocol.Decode(conn); err != nil {
			if !s.shutdown.Load() {
				log.Info("subscriber detached", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	delete(s.peers, conn)
}

// Broadcast encodes env once and writes it to every attached subscriber.
// A subscriber whose write fails or times out is dropped; that is not an error
// for the caller. Delivery to zero subscribers succeeds.
func (s *Server) Broadcast(env *message.Envelope) error {
	if s.shutdown.Load() {
		return ErrClosed
	}
	body, err := codec.GetCodec(s.codecType).Encode(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	s.sending.Lock()
	defer s.sending.Unlock()

	s.seq++
	header := protocol.Header{
		CodecType: byte(s.codecType),
		MsgType:   protocol.MsgTypePublish,
		Seq:       s.seq,
		BodyLen:   uint32(len(body)),
	}

	s.mu.Lock()
	peers := make([]net.Conn, 0, len(s.peers))
	for conn := range s.peers {
		peers = append(peers, conn)
	}
	s.mu.Unlock()

	for _, conn := range peers {
		conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := protocol.Encode(conn, &header, body); err != nil {
			s.log.Warn("dropping subscriber after failed write",
				zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			s.mu.Lock()
			delete(s.peers, conn)
			s.mu.Unlock()
			conn.Close()
		}
	}

	if s.shutdown.Load() {
		return ErrClosed
	}
	return nil
}

// Close stops accepting, closes every subscriber connection and waits for the
// connection goroutines to exit. Calling Close more than once is a no-op.
func (s *Server) Close() error {
	if s.shutdown.Swap(true) {
		return nil
	}
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("timeout waiting for subscriber connections to close")
	}
}
