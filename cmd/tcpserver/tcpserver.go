// Package tcpserver accepts client connections and hands each one to the task pool.
package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/taskpool"
)

// Pool provides the worker pool interface needed by the server.
type Pool interface {
	SubmitWithDrop(task taskpool.Task, drop func()) error
}

// SessionHandler serves one connection until it ends and closes it.
type SessionHandler interface {
	Serve(ctx context.Context, conn net.Conn)
}

// Server runs the accept loop.
type Server struct {
	pool    Pool
	handler SessionHandler
	log     zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// New returns a server that is not yet listening.
func New(pool Pool, handler SessionHandler, logger zerolog.Logger) *Server {
	return &Server{
		pool:    pool,
		handler: handler,
		log:     logger.With().Str("component", "tcpserver").Logger(),
	}
}

// ListenAndServe listens on address and serves until Close is called.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and submits one session per connection.
//
// It returns nil once Close has been called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()

		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info().Str("address", ln.Addr().String()).Msg("Listening for clients")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.log.Error().Err(err).Msg("accept failed")

			return err
		}

		connLog := s.log.With().
			Str("conn_id", uuid.NewString()).
			Str("remote", conn.RemoteAddr().String()).
			Logger()
		connCtx := connLog.WithContext(ctx)

		connLog.Info().Msg("Client connected")

		err = s.pool.SubmitWithDrop(func() {
			s.handler.Serve(connCtx, conn)
		}, func() {
			connLog.Info().Msg("Dropping queued client")
			_ = conn.Close()
		})
		if err != nil {
			connLog.Warn().Err(err).Msg("Rejecting client")
			_ = conn.Close()
		}
	}
}

// Close stops accepting new clients. Sessions already running are not affected.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	if s.listener == nil {
		return nil
	}

	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
