package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edlund/gpslinkd/internal/metrics"
	"github.com/edlund/gpslinkd/internal/telemetry"
)

// Config holds the serving-loop tunables.
type Config struct {
	SendInterval     time.Duration
	AcceptRetryDelay time.Duration
	WriteTimeout     time.Duration
}

// Server accepts one peer at a time and streams telemetry to it. A new
// accept begins only after the previous session's socket is closed.
type Server struct {
	logger   zerolog.Logger
	cfg      Config
	listener Listener
	source   telemetry.Source
	metrics  *metrics.Set

	mu      sync.Mutex
	current Conn
}

// New creates a connection server over the given listener and telemetry
// source.
func New(logger zerolog.Logger, cfg Config, ln Listener, src telemetry.Source, m *metrics.Set) *Server {
	return &Server{
		logger:   logger.With().Str("component", "server").Logger(),
		cfg:      cfg,
		listener: ln,
		source:   src,
		metrics:  m,
	}
}

// Run accepts and serves peers until the context is cancelled, then closes
// the listener and any live session and returns nil. Accept errors are
// retried after a short pause; they never bring the daemon down.
func (s *Server) Run(ctx context.Context) error {
	// Accept and Write are blocking socket calls with no cancellation of
	// their own; closing the sockets from here is what unblocks them.
	go func() {
		<-ctx.Done()
		s.listener.Close()
		s.closeCurrent()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Msg("accept failed")
			sleepCtx(ctx, s.cfg.AcceptRetryDelay)
			continue
		}
		if ctx.Err() != nil {
			conn.Close()
			return nil
		}

		sess := newSession(conn)
		s.setCurrent(conn)
		s.metrics.SessionsAccepted.Inc()
		s.logger.Info().
			Str("session", sess.ID.String()).
			Str("peer", sess.Peer).
			Msg("client connected")

		s.serve(ctx, sess)

		s.setCurrent(nil)
		conn.Close()
		s.logger.Info().
			Str("session", sess.ID.String()).
			Msg("client disconnected, waiting for new connection")
	}
}

func (s *Server) setCurrent(conn Conn) {
	s.mu.Lock()
	s.current = conn
	s.mu.Unlock()
}

func (s *Server) closeCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
