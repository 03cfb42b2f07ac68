// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"errors"

	"github.com/quic-go/quic-go"
)

// Application error codes placed in a connection's CONNECTION_CLOSE frame.
// Mirrors the small, explicit taxonomy a QUIC callback surface needs since
// the transport library does not define these itself.
const (
	// UnknownError is the catchall for conditions that should not occur.
	UnknownError quic.ApplicationErrorCode = 1
	// LocalError designates a failure local to this process (e.g. a marshal
	// error), not attributable to the peer.
	LocalError quic.ApplicationErrorCode = 2
	// ConnectionError designates a failure in data transmission.
	ConnectionError quic.ApplicationErrorCode = 3
	// PeerError designates a protocol violation committed by the peer.
	PeerError quic.ApplicationErrorCode = 4
	// ApplicationShutdown is sent when the server process is shutting down.
	ApplicationShutdown quic.ApplicationErrorCode = 5
	// EchoBufferOverflow is sent as the stream error code of CancelRead
	// (informationally, alongside a truncation) when a raw-echo, WebSocket
	// or WebTransport echo stream exceeded the per-stream buffer cap.
	EchoBufferOverflow quic.ApplicationErrorCode = 6
	// WTProtocolError designates a WebTransport or WebSocket-over-H3
	// Extended CONNECT negotiation failure.
	WTProtocolError quic.ApplicationErrorCode = 7

	// DataMarshalError is a stream-level error code for failures preparing
	// data before it reaches the wire.
	DataMarshalError quic.StreamErrorCode = 1
	// StreamTransmissionError is a stream-level error code for I/O failures
	// on an individual stream.
	StreamTransmissionError quic.StreamErrorCode = 2
)

// HandshakeError wraps a failure that occurred while classifying a
// connection's negotiated ALPN or bringing up its HTTP/3 control streams,
// carrying the application error code that should close the connection.
type HandshakeError struct {
	Msg   string
	Code  quic.ApplicationErrorCode
	Cause error
}

// NewHandshakeError constructs a HandshakeError.
func NewHandshakeError(message string, code quic.ApplicationErrorCode, cause error) *HandshakeError {
	return &HandshakeError{Msg: message, Code: code, Cause: cause}
}

func (err *HandshakeError) Error() string {
	return err.Msg
}

func (err *HandshakeError) Unwrap() error {
	return err.Cause
}

// inferAppErrorCode classifies an arbitrary Go error into the application
// error code taxonomy above: a *quic.StreamError or *quic.ApplicationError
// already carries a peer- or library-attributed code, so it is treated as
// PeerError; anything else reaching here is a transmission failure this
// process could not attribute to the peer.
func inferAppErrorCode(err error) quic.ApplicationErrorCode {
	if err == nil {
		return UnknownError
	}
	var streamErr *quic.StreamError
	if errors.As(err, &streamErr) {
		return PeerError
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return PeerError
	}
	return ConnectionError
}

// inferStreamErrorCode is inferAppErrorCode's stream-level counterpart,
// used when canceling the read or write side of a single stream rather
// than closing the whole connection.
func inferStreamErrorCode(err error) quic.StreamErrorCode {
	if err == nil {
		return StreamTransmissionError
	}
	var streamErr *quic.StreamError
	if errors.As(err, &streamErr) {
		return StreamTransmissionError
	}
	return DataMarshalError
}
