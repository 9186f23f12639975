package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/stormnet/storm-go/session"
)

// Server accepts sessions and runs a Peer answering from its Responder
// for each of them.
type Server struct {
	responder *Responder
	log       *zap.Logger
	opts      []PeerOption

	mu    sync.Mutex
	peers map[*Peer]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a Server. opts apply to every accepted peer.
func NewServer(responder *Responder, log *zap.Logger, opts ...PeerOption) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		responder: responder,
		log:       log,
		opts:      opts,
		peers:     make(map[*Peer]struct{}),
	}
}

// Serve accepts connections on ln until ctx is done or ln is closed. Each
// connection completes its handshake on its own goroutine, bounded by
// session.HandshakeTimeout; failed handshakes are logged and dropped.
// Before returning Serve closes ln and every peer and waits for them.
func (s *Server) Serve(ctx context.Context, ln *session.Listener) error {
	if ln == nil {
		return ErrNilParam
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.shutdown(cancel)
	defer func() { _ = ln.Close() }()

	s.log.Info("serving", zap.Stringer("addr", ln.Addr()))
	for {
		conn, err := ln.AcceptConn()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, session.ErrClosed) {
				return nil
			}
			return fmt.Errorf("node: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// handle runs the responder handshake on conn and then its peer.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	hctx, cancel := context.WithTimeout(ctx, session.HandshakeTimeout)
	sess, err := session.Server(hctx, conn)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("handshake failed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
		}
		return
	}

	opts := append([]PeerOption{WithResponder(s.responder), WithLogger(s.log)}, s.opts...)
	peer := NewPeer(sess, opts...)

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = peer.Close()
		return
	}
	s.peers[peer] = struct{}{}
	s.mu.Unlock()

	peer.log.Info("peer connected")
	if err := peer.Run(ctx); err != nil && ctx.Err() == nil {
		peer.log.Warn("peer failed", zap.Error(err))
	}
	_ = peer.Close()
	peer.log.Info("peer disconnected")

	s.mu.Lock()
	delete(s.peers, peer)
	s.mu.Unlock()
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) shutdown(cancel context.CancelFunc) {
	s.mu.Lock()
	cancel()
	for peer := range s.peers {
		_ = peer.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
