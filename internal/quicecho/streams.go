// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"fmt"
	"sync"
)

// MaxEchoBuffer bounds the total number of bytes a single stream's echo
// buffer accepts over the stream's lifetime, including bytes already
// written back; further bytes are silently truncated.
const MaxEchoBuffer = 64 * 1024

// StreamClass tags a stream's role. The tag is closed and small (five
// kinds), so a tagged variant is used rather than an interface hierarchy.
type StreamClass int

const (
	// Unclassified is the transient state between "record created" and
	// "first meaningful event observed".
	Unclassified StreamClass = iota
	// RawEcho is a stream in a raw-echo (ALPN "echo") connection.
	RawEcho
	// H3Request is an HTTP/3 request/response stream that is not (yet, or
	// ever) an Extended CONNECT.
	H3Request
	// WTBidi is a WebTransport session stream, or a bidirectional stream
	// opened within an established WebTransport session.
	WTBidi
	// WTUni is a unidirectional stream opened within a WebTransport
	// session.
	WTUni
	// WS is an Extended CONNECT stream negotiated for WebSocket-over-H3
	// (RFC 9220).
	WS
)

func (c StreamClass) String() string {
	switch c {
	case RawEcho:
		return "RawEcho"
	case H3Request:
		return "H3Request"
	case WTBidi:
		return "WTBidi"
	case WTUni:
		return "WTUni"
	case WS:
		return "WS"
	default:
		return "Unclassified"
	}
}

// StreamRecord is the per-stream state: classification, the bounded echo
// buffer, and the captured request pseudo-headers. It is created on the
// first event referencing the id and destroyed when the owning goroutine
// returns.
//
// Invariant: sendOff <= sendLen <= len(sendBuf) (== MaxEchoBuffer once
// grown); finReceived is monotone false->true.
type StreamRecord struct {
	StreamID int64
	Class    StreamClass

	sendBuf []byte
	sendLen int
	sendOff int

	finReceived bool

	// HTTP/3 request pseudo-headers, captured bounded-copy by the request
	// handler.
	Method   string
	Path     string
	Protocol string // the ":protocol" pseudo-header, for Extended CONNECT

	// WTSessionID names the WebTransport session stream this stream
	// belongs to, or -1 if this record is not part of a WT session.
	WTSessionID int64
}

// NewStreamRecord creates an unclassified record for a stream id.
func NewStreamRecord(streamID int64) *StreamRecord {
	return &StreamRecord{
		StreamID:    streamID,
		Class:       Unclassified,
		sendBuf:     make([]byte, 0, 4096),
		WTSessionID: -1,
	}
}

// Append adds bytes to the stream's echo buffer, silently truncating
// anything beyond MaxEchoBuffer. Returns the number of bytes actually
// buffered.
func (r *StreamRecord) Append(b []byte) int {
	room := MaxEchoBuffer - r.sendLen
	if room <= 0 {
		return 0
	}
	if len(b) > room {
		b = b[:room]
	}
	r.sendBuf = append(r.sendBuf[:r.sendLen], b...)
	r.sendLen += len(b)
	return len(b)
}

// SetFin marks that no more bytes will arrive on this stream. Monotone:
// once true, further calls are no-ops.
func (r *StreamRecord) SetFin() {
	r.finReceived = true
}

// FinReceived reports whether the peer has signaled end-of-stream.
func (r *StreamRecord) FinReceived() bool {
	return r.finReceived
}

// Pending returns the unsent suffix of the echo buffer.
func (r *StreamRecord) Pending() []byte {
	return r.sendBuf[r.sendOff:r.sendLen]
}

// Advance records that n bytes of the pending suffix were written out.
func (r *StreamRecord) Advance(n int) {
	r.sendOff += n
	if r.sendOff > r.sendLen {
		panic("quicecho: stream write offset exceeded send length")
	}
}

// Drained reports whether every buffered byte has been written out.
func (r *StreamRecord) Drained() bool {
	return r.sendOff == r.sendLen
}

func (r *StreamRecord) String() string {
	return fmt.Sprintf("Stream{id=%d class=%v path=%q}", r.StreamID, r.Class, r.Path)
}

// StreamTable is a connection's collection of active stream records keyed
// by stream id, guarded because it is shared across goroutines: raw-echo
// mode runs one goroutine per stream, and the HTTP/3 and WebTransport
// handlers run on library-owned goroutines.
type StreamTable struct {
	mu      sync.Mutex
	records map[int64]*StreamRecord
}

// NewStreamTable creates an empty stream table.
func NewStreamTable() *StreamTable {
	return &StreamTable{records: make(map[int64]*StreamRecord)}
}

// GetOrCreate returns the existing record for id, or creates one.
func (t *StreamTable) GetOrCreate(id int64) *StreamRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[id]; ok {
		return r
	}
	r := NewStreamRecord(id)
	t.records[id] = r
	return r
}

// Get returns the record for id, if any.
func (t *StreamTable) Get(id int64) (*StreamRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	return r, ok
}

// Remove deletes the record for id.
func (t *StreamTable) Remove(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}

// Len reports the number of active records, for diagnostics and tests.
func (t *StreamTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
