// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import "fmt"

// StatusType indicates the kind of event carried by a ConnStatus message.
type StatusType uint

const (
	_ StatusType = iota

	// ConnectionAccepted shows that a new connection completed its
	// handshake and was classified into echo or H3 mode.
	ConnectionAccepted

	// ConnectionClosed shows that a connection was torn down, either by
	// idle timeout, a fatal transport error, or peer-initiated close.
	ConnectionClosed

	// StreamEchoed shows that a stream's buffered bytes were fully
	// flushed back to the peer.
	StreamEchoed
)

func (st StatusType) String() string {
	switch st {
	case ConnectionAccepted:
		return "Connection Accepted"
	case ConnectionClosed:
		return "Connection Closed"
	case StreamEchoed:
		return "Stream Echoed"
	default:
		return "Unknown Status"
	}
}

// ConnStatus reports a connection-lifecycle event out of a connection's
// goroutines, onto the server's status channel, so callers outside the
// data path (diagnostics, tests) can observe it without touching
// connection-owned state directly.
type ConnStatus struct {
	Conn    *Connection
	Type    StatusType
	Message interface{}
}

func (cs ConnStatus) String() string {
	return fmt.Sprintf("%v for %v", cs.Type, cs.Conn)
}

// NewConnStatus builds a ConnStatus value.
func NewConnStatus(conn *Connection, typ StatusType, message interface{}) ConnStatus {
	return ConnStatus{Conn: conn, Type: typ, Message: message}
}
