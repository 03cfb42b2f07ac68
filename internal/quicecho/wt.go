// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"errors"
	"io"
	"net/http"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
	log "github.com/sirupsen/logrus"
)

// webtransportDraftHeader is the draft-02 WebTransport response header
// sent on a successful session CONNECT.
const webtransportDraftHeader = "sec-webtransport-http3-draft"

// handleWebTransportConnect implements the CONNECT +
// :protocol=webtransport branch: classify the stream WTBidi, mark
// it as the connection's session stream, respond 200 with the draft
// header, then service the session's bidi/uni streams and datagrams until
// it closes.
func (c *Connection) handleWebTransportConnect(w http.ResponseWriter, r *http.Request, record *StreamRecord) {
	record.Class = WTBidi
	record.WTSessionID = record.StreamID
	c.setWTSessionStream(record.StreamID)
	defer c.clearWTSessionStream(record.StreamID)

	w.Header().Set(webtransportDraftHeader, "draft02")

	session, err := c.wtServer.Upgrade(w, r)
	if err != nil {
		log.WithFields(log.Fields{"peer": c.quicConn.RemoteAddr(), "error": err}).Warn("webtransport upgrade failed")
		if streamer, ok := w.(http3.HTTPStreamer); ok {
			streamer.HTTPStream().CancelWrite(quic.StreamErrorCode(WTProtocolError))
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	c.registerWTSession(record.StreamID, session)

	log.WithFields(log.Fields{
		"peer":    c.quicConn.RemoteAddr(),
		"session": record.StreamID,
	}).Info("webtransport session established")

	c.serveWTSession(session, record.StreamID)
}

// serveWTSession echoes every bidirectional stream and datagram within an
// established WebTransport session, applying the same FIFO echo contract as
// raw-echo mode, and drains every unidirectional stream without echoing it
// (see echoWTUniStream). Session-scoped datagram
// demultiplexing (the varint session-id prefix from the WebTransport
// draft) is handled internally by webtransport-go.
func (c *Connection) serveWTSession(session *webtransport.Session, sessionID int64) {
	ctx := session.Context()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			stream, err := session.AcceptStream(ctx)
			if err != nil {
				return
			}
			go c.echoWTBidiStream(stream, sessionID)
		}
	}()

	go func() {
		for {
			stream, err := session.AcceptUniStream(ctx)
			if err != nil {
				return
			}
			go c.echoWTUniStream(stream, sessionID)
		}
	}()

	go func() {
		for {
			data, err := session.ReceiveDatagram(ctx)
			if err != nil {
				return
			}
			if err := session.SendDatagram(data); err != nil {
				log.WithField("error", err).Warn("error echoing webtransport datagram")
				return
			}
		}
	}()

	<-done
}

// echoWTBidiStream echoes a single bidirectional stream opened within a
// WebTransport session.
func (c *Connection) echoWTBidiStream(stream webtransport.Stream, sessionID int64) {
	id := int64(stream.StreamID())
	record := c.streams.GetOrCreate(id)
	record.Class = WTBidi
	record.WTSessionID = sessionID
	defer c.streams.Remove(id)

	buf := make([]byte, 32*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			buffered := record.Append(buf[:n])
			if buffered < n {
				log.WithFields(log.Fields{"stream": id, "excess": n - buffered}).Warn("echo buffer overflow, truncating")
				stream.CancelRead(webtransport.StreamErrorCode(EchoBufferOverflow))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				record.SetFin()
			}
			break
		}
	}
	if !record.Drained() {
		n, err := stream.Write(record.Pending())
		record.Advance(n)
		if err != nil {
			stream.CancelWrite(webtransport.StreamErrorCode(inferStreamErrorCode(err)))
			log.WithFields(log.Fields{"stream": id, "error": err}).Warn("error writing webtransport stream")
		}
	}
	if record.FinReceived() {
		_ = stream.Close()
	}
}

// echoWTUniStream drains a unidirectional stream opened within a
// WebTransport session. Unidirectional streams have no write side to echo
// on, so classification (WTUni) and FIN-tracking are the only observable
// effects.
func (c *Connection) echoWTUniStream(stream webtransport.ReceiveStream, sessionID int64) {
	id := int64(stream.StreamID())
	record := c.streams.GetOrCreate(id)
	record.Class = WTUni
	record.WTSessionID = sessionID
	defer c.streams.Remove(id)

	buf := make([]byte, 32*1024)
	for {
		_, err := stream.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				record.SetFin()
			}
			return
		}
	}
}
