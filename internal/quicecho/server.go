// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"
)

// Server owns the UDP listener, the connection registry, and the
// configuration every accepted connection is built from. The process-wide
// state (stateless-reset secret, TLS config) lives here rather than in
// package globals and is read-only once Serve has started.
type Server struct {
	config Config
	creds  *Credentials

	transport *quic.Transport
	listener  *quic.EarlyListener

	connMu sync.RWMutex
	conns  map[string]*Connection

	status chan ConnStatus

	upgrader websocket.Upgrader

	clock     Clock
	startedAt time.Time

	closeOnce sync.Once
}

// New builds a Server from a configuration and credentials. It does not
// bind a socket; call Serve to start listening.
func New(cfg Config, creds *Credentials) (*Server, error) {
	return &Server{
		config:    cfg,
		creds:     creds,
		conns:     make(map[string]*Connection),
		status:    make(chan ConnStatus, 64),
		clock:     SystemClock,
		startedAt: SystemClock.Now(),
	}, nil
}

// Status returns the channel on which connection-lifecycle events are
// reported. Callers who do not drain it get no diagnostics, but the
// server never blocks on it: reportStatus drops events when the channel
// is full.
func (s *Server) Status() <-chan ConnStatus {
	return s.status
}

// Serve binds the configured listen address and runs the accept loop
// until ctx is canceled or the listener is closed: bind the UDP socket,
// generate the stateless-reset secret, then loop accepting connections.
func (s *Server) Serve(ctx context.Context) error {
	secret, err := newStatelessResetSecret()
	if err != nil {
		return fmt.Errorf("generating stateless reset secret: %w", err)
	}

	addr, err := net.ResolveUDPAddr("udp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("resolving listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}

	var resetKey quic.StatelessResetKey
	copy(resetKey[:], secret)

	s.transport = &quic.Transport{
		Conn:                  conn,
		ConnectionIDGenerator: NewConnectionIDGenerator(),
		StatelessResetKey:     &resetKey,
	}

	listener, err := s.transport.ListenEarly(s.creds.TLSConfig(), s.config.QUICConfig())
	if err != nil {
		return fmt.Errorf("starting quic listener: %w", err)
	}
	s.listener = listener

	log.WithField("address", s.config.ListenAddr).Info("quicecho server listening")

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		qc, err := listener.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, quic.ErrServerClosed) {
				log.WithField("address", s.config.ListenAddr).Info("quicecho server shutting down")
				return nil
			}
			log.WithError(err).Error("error accepting quic connection")
			continue
		}
		c := newConnection(s, qc)
		s.addConnection(c)
		go c.run(ctx)
	}
}

func (s *Server) addConnection(c *Connection) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[connKey(c.quicConn)] = c
}

func (s *Server) removeConnection(c *Connection) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, connKey(c.quicConn))
}

// ConnectionCount reports the number of connections currently tracked,
// for diagnostics.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.conns)
}

// Snapshot returns a point-in-time copy of the active connection set's
// identifying state, for the diagnostics dump.
func (s *Server) Snapshot() []ConnectionSnapshot {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	out := make([]ConnectionSnapshot, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, ConnectionSnapshot{
			Peer:    c.quicConn.RemoteAddr().String(),
			Proto:   c.Proto().String(),
			Streams: c.streams.Len(),
		})
	}
	return out
}

func (s *Server) reportStatus(cs ConnStatus) {
	select {
	case s.status <- cs:
	default:
		log.WithField("status", cs).Debug("status channel full, dropping event")
	}
}

// Close shuts down the listener and every tracked connection, sending
// ApplicationShutdown on each. Listener and transport close errors are
// aggregated rather than the first one winning, since both sockets are
// independently worth reporting if they fail.
func (s *Server) Close() error {
	var merr *multierror.Error
	s.closeOnce.Do(func() {
		s.connMu.RLock()
		for _, c := range s.conns {
			_ = c.quicConn.CloseWithError(ApplicationShutdown, "server shutting down")
		}
		s.connMu.RUnlock()

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				merr = multierror.Append(merr, fmt.Errorf("closing listener: %w", err))
			}
		}
		if s.transport != nil {
			if err := s.transport.Close(); err != nil {
				merr = multierror.Append(merr, fmt.Errorf("closing transport: %w", err))
			}
		}
	})
	return merr.ErrorOrNil()
}

// connKey derives the registry key for a connection. quic.Connection does
// not expose the server-chosen SCID bytes directly, so the remote address
// is used instead: unique per peer here, since a peer rotating connection
// ids still owns a single UDP 4-tuple in the steady state this server
// targets (path migration is out of scope).
func connKey(qc quic.Connection) string {
	return qc.RemoteAddr().String()
}

// Uptime reports how long the server has been running, per clock.
func (s *Server) Uptime() time.Duration {
	return s.clock.Now().Sub(s.startedAt)
}

// ConnectionSnapshot is the diagnostics-facing, copy-safe view of a single
// tracked connection. Its CborMarshaler implementation lives in
// diagnostics.go alongside the rest of the SIGUSR1 dump.
type ConnectionSnapshot struct {
	Peer    string
	Proto   string
	Streams int
}
