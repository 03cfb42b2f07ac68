// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
	log "github.com/sirupsen/logrus"
)

// Connection binds a QUIC transport instance to the stream table, the
// negotiated application protocol, and (once elevated) the HTTP/3 and
// WebTransport state for that connection. One value is created per
// accepted connection; it is destroyed when the transport reports
// draining, idle-close, or a fatal error.
//
// Invariants: proto is set exactly once, immediately after
// the handshake completes, and is immutable thereafter. The WebTransport
// session stream id is only ever set for a stream of class WTBidi whose
// Extended CONNECT carried :protocol=webtransport.
type Connection struct {
	quicConn quic.EarlyConnection
	server   *Server

	streams *StreamTable

	protoOnce sync.Once
	proto     ProtoKind

	handshakeDone atomic.Bool

	wtSessionStreamMu sync.Mutex
	wtSessionStream   int64 // -1 if absent
	wtSessions        map[int64]*webtransport.Session
	wtServer          *webtransport.Server

	closeOnce sync.Once
}

// newConnection wraps an accepted quic.Connection in connection-local
// state. The protocol is not yet known: it is set by run once the
// handshake completes, preserving the "set exactly once" invariant.
func newConnection(srv *Server, qc quic.EarlyConnection) *Connection {
	return &Connection{
		quicConn:        qc,
		server:          srv,
		streams:         NewStreamTable(),
		wtSessionStream: -1,
		wtSessions:      make(map[int64]*webtransport.Session),
	}
}

func (c *Connection) String() string {
	return fmt.Sprintf("Connection{peer=%v proto=%v streams=%d}", c.quicConn.RemoteAddr(), c.Proto(), c.streams.Len())
}

// Proto returns the connection's negotiated application protocol. Before
// the handshake completes it reports ProtoUnknown.
func (c *Connection) Proto() ProtoKind {
	return c.proto
}

// setProto is called exactly once, from run, immediately after the
// handshake-completing flight has been read.
func (c *Connection) setProto(p ProtoKind) {
	c.protoOnce.Do(func() {
		c.proto = p
	})
}

// WTSessionStream returns the stream id of the connection's active
// WebTransport session, or -1 if none is established.
func (c *Connection) WTSessionStream() int64 {
	c.wtSessionStreamMu.Lock()
	defer c.wtSessionStreamMu.Unlock()
	return c.wtSessionStream
}

func (c *Connection) setWTSessionStream(id int64) {
	c.wtSessionStreamMu.Lock()
	defer c.wtSessionStreamMu.Unlock()
	c.wtSessionStream = id
}

func (c *Connection) clearWTSessionStream(id int64) {
	c.wtSessionStreamMu.Lock()
	defer c.wtSessionStreamMu.Unlock()
	if c.wtSessionStream == id {
		c.wtSessionStream = -1
	}
	delete(c.wtSessions, id)
}

func (c *Connection) registerWTSession(id int64, sess *webtransport.Session) {
	c.wtSessionStreamMu.Lock()
	defer c.wtSessionStreamMu.Unlock()
	c.wtSessions[id] = sess
}

// run drives one accepted connection from handshake through teardown:
// wait for the handshake, classify the negotiated ALPN, then hand the
// connection to the echo or HTTP/3 serving loop. Each connection gets its
// own goroutine tree (one per stream in echo mode; the http3/webtransport
// libraries' own goroutines in H3 mode).
func (c *Connection) run(ctx context.Context) {
	defer c.teardown()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"peer":  c.quicConn.RemoteAddr(),
				"panic": r,
			}).Error("connection goroutine panicked")
			_ = c.quicConn.CloseWithError(UnknownError, "internal error")
		}
	}()

	select {
	case <-c.quicConn.HandshakeComplete():
	case <-c.quicConn.Context().Done():
		return
	case <-ctx.Done():
		return
	}
	c.handshakeDone.Store(true)

	state := c.quicConn.ConnectionState()
	alpn := state.TLS.NegotiatedProtocol
	proto := protoForALPN(alpn)
	if proto == ProtoUnknown {
		herr := NewHandshakeError("unrecognized ALPN "+alpn, PeerError, nil)
		log.WithFields(log.Fields{
			"peer": c.quicConn.RemoteAddr(),
			"alpn": alpn,
		}).WithError(herr).Error("closing connection after handshake")
		_ = c.quicConn.CloseWithError(herr.Code, herr.Msg)
		return
	}
	c.setProto(proto)

	log.WithFields(log.Fields{
		"peer":  c.quicConn.RemoteAddr(),
		"proto": proto,
		"0rtt":  state.Used0RTT,
	}).Info("connection accepted")
	c.server.reportStatus(NewConnStatus(c, ConnectionAccepted, proto))

	switch proto {
	case ProtoEcho:
		c.runEcho(ctx)
	case ProtoH3:
		c.runH3(ctx)
	}
}

func (c *Connection) teardown() {
	c.closeOnce.Do(func() {
		log.WithField("peer", c.quicConn.RemoteAddr()).Info("connection closed")
		c.server.removeConnection(c)
		c.server.reportStatus(NewConnStatus(c, ConnectionClosed, nil))
	})
}
